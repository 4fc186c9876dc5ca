package packaging

import (
	"encoding/json"
	"fmt"
	"strings"
)

type packageJSON struct {
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	Description     string            `json:"description"`
	Private         bool              `json:"private"`
	Main            string            `json:"main,omitempty"`
	Scripts         map[string]string `json:"scripts"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func manifest(cfg Config, main string, scripts, deps, devDeps map[string]string) *string {
	b, err := json.MarshalIndent(packageJSON{
		Name:            cfg.Slug(),
		Version:         "1.0.0",
		Description:     cfg.Description,
		Private:         true,
		Main:            main,
		Scripts:         scripts,
		Dependencies:    deps,
		DevDependencies: devDeps,
	}, "", "  ")
	if err != nil {
		// Only string maps are marshalled.
		panic(fmt.Sprintf("package.json: %v", err))
	}
	return text(string(b) + "\n")
}

func readme(cfg Config, platform, setup string) *string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", cfg.Name, cfg.Description)
	fmt.Fprintf(&b, "Platform: %s\n", platform)
	if cfg.Architecture != "" {
		fmt.Fprintf(&b, "Architecture: %s\n", cfg.Architecture)
	}
	b.WriteString("\n## Setup\n\n")
	b.WriteString(setup)
	b.WriteString("\n")
	return text(b.String())
}

func text(s string) *string { return &s }

// jsString quotes s for embedding in generated JavaScript.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type webGenerator struct{ cfg Config }

func (webGenerator) Platform() string { return PlatformWeb }

func (webGenerator) Structure() Tree {
	return Tree{
		"frontend": Tree{
			"src": Tree{
				"components": Tree{},
				"pages":      Tree{},
				"services":   Tree{},
				"App.js":     "",
			},
			"package.json": "",
			".env.example": "",
		},
		"backend": Tree{
			"app": Tree{
				"api":      Tree{},
				"models":   Tree{},
				"services": Tree{},
			},
			"main.py":          "",
			"requirements.txt": "",
			".env.example":     "",
		},
		"README.md": "",
	}
}

func (g webGenerator) Files() Files {
	return Files{
		"frontend/package.json": manifest(g.cfg, "",
			map[string]string{"dev": "vite", "build": "vite build"},
			map[string]string{"react": "^19.0.0", "react-dom": "^19.0.0", "axios": "^1.6.0"},
			map[string]string{"vite": "^5.0.0"},
		),
		"frontend/src/App.js": text(fmt.Sprintf(`import React from 'react';

function App() {
  return (
    <div>
      <h1>{%s}</h1>
      <p>Welcome to your generated application!</p>
    </div>
  );
}

export default App;
`, jsString(g.cfg.Name))),
		"frontend/src/components/.gitkeep": nil,
		"frontend/.env.example":            text("REACT_APP_API_URL=http://localhost:8001/api\n"),
		"backend/main.py": text(`from fastapi import FastAPI

app = FastAPI()


@app.get("/")
def root():
    return {"message": "API is running"}
`),
		"backend/requirements.txt": text("fastapi==0.109.0\nuvicorn[standard]==0.27.0\n"),
		"backend/.env.example": text(fmt.Sprintf(
			"MONGODB_URL=mongodb://localhost:27017/\nDB_NAME=%s\nJWT_SECRET=change-me\n", g.cfg.Slug())),
		"README.md": readme(g.cfg, PlatformWeb,
			"```\ncd backend && pip install -r requirements.txt && uvicorn main:app --reload\ncd frontend && npm install && npm run dev\n```"),
	}
}

type mobileGenerator struct{ cfg Config }

func (mobileGenerator) Platform() string { return PlatformMobile }

func (mobileGenerator) Structure() Tree {
	return Tree{
		"src": Tree{
			"components": Tree{},
			"screens":    Tree{},
			"App.tsx":    "",
		},
		"package.json": "",
		"README.md":    "",
	}
}

func (g mobileGenerator) Files() Files {
	return Files{
		"package.json": manifest(g.cfg, "",
			map[string]string{"android": "react-native run-android", "ios": "react-native run-ios"},
			map[string]string{"react": "^18.2.0", "react-native": "^0.73.0"},
			map[string]string{"typescript": "^5.3.0"},
		),
		"src/App.tsx": text(fmt.Sprintf(`import React from 'react';
import { View, Text } from 'react-native';

function App() {
  return (
    <View>
      <Text>{%s}</Text>
    </View>
  );
}

export default App;
`, jsString(g.cfg.Name))),
		"src/screens/.gitkeep": nil,
		"README.md":            readme(g.cfg, PlatformMobile, "```\nnpm install\nnpm run android\n```"),
	}
}

type desktopGenerator struct{ cfg Config }

func (desktopGenerator) Platform() string { return PlatformDesktop }

func (desktopGenerator) Structure() Tree {
	return Tree{
		"src": Tree{
			"main":     Tree{},
			"renderer": Tree{},
			"main.js":  "",
		},
		"package.json": "",
		"README.md":    "",
	}
}

func (g desktopGenerator) Files() Files {
	return Files{
		"package.json": manifest(g.cfg, "src/main.js",
			map[string]string{"electron": "electron .", "build": "electron-builder"},
			map[string]string{"electron": "^28.0.0", "react": "^19.0.0"},
			map[string]string{"electron-builder": "^24.9.0"},
		),
		"src/main.js": text(fmt.Sprintf(`const { app, BrowserWindow } = require('electron');

function createWindow() {
  const win = new BrowserWindow({ width: 1200, height: 800, title: %s });
  win.loadFile('index.html');
}

app.whenReady().then(createWindow);

app.on('window-all-closed', () => {
  if (process.platform !== 'darwin') app.quit();
});
`, jsString(g.cfg.Name))),
		"src/renderer/.gitkeep": nil,
		"README.md":             readme(g.cfg, PlatformDesktop, "```\nnpm install\nnpm run electron\n```"),
	}
}
