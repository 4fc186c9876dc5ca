package specialist

func definitions() []*Definition {
	return []*Definition{
		{
			Kind:         Database,
			DisplayName:  "Database Designer",
			Icon:         "🗄️",
			Description:  "Designs comprehensive MongoDB schemas, relationships, and optimization strategies",
			Expertise:    "Database design, schema optimization, indexing, relationships",
			Capabilities: []string{"Schema Design", "Indexing", "Query Optimization", "Data Modeling"},
			Output:       "Database schema, migrations, optimization guides",
			Template:     "database.tmpl",
			Features:     []string{"Schema Design", "Index Strategy", "Data Relationships"},
			FeatureLabel: "Database Schema",
			Annotate: func(_ string, tc TaskContext) map[string]any {
				dbType := tc["db_type"]
				if dbType == "" {
					dbType = "mongodb"
				}
				return map[string]any{"db_type": dbType}
			},
		},
		{
			Kind:         APIArchitecture,
			DisplayName:  "API Architect",
			Icon:         "🔌",
			Description:  "Designs RESTful API architecture, endpoints, and contracts",
			Expertise:    "REST API design, authentication, versioning, API contracts",
			Capabilities: []string{"REST API Design", "Authentication", "Rate Limiting", "OpenAPI Specs"},
			Output:       "API specification, endpoint documentation, auth strategy",
			Template:     "api_architecture.tmpl",
			Features: []string{
				"RESTful API Design",
				"Authentication Strategy",
				"Rate Limiting",
				"API Versioning",
				"Error Handling",
				"OpenAPI Documentation",
			},
			FeatureLabel: "API Architecture",
			Annotate: func(text string, _ TaskContext) map[string]any {
				return map[string]any{"endpoints_count": CountEndpoints(text)}
			},
		},
		{
			Kind:         Backend,
			DisplayName:  "Backend Developer",
			Icon:         "⚙️",
			Description:  "Generates modular backend code with FastAPI/Express architecture",
			Expertise:    "Backend architecture, API implementation, data modeling, business logic",
			Capabilities: []string{"FastAPI Development", "Modular Architecture", "Business Logic", "Services"},
			Output:       "Complete backend codebase with routes, services, models",
			Template:     "backend.tmpl",
			Features:     []string{"API Endpoints", "Data Models", "Service Layer"},
			FeatureLabel: "Backend Services",
		},
		{
			Kind:         UIUX,
			DisplayName:  "UI/UX Designer",
			Icon:         "🎨",
			Description:  "Creates comprehensive design systems and component libraries",
			Expertise:    "Design systems, visual design, accessibility",
			Capabilities: []string{"Design System", "Color Palettes", "Typography", "Accessibility"},
			Output:       "Design system, component specs, style guides",
			Template:     "uiux.tmpl",
			Features: []string{
				"Complete Color Palette",
				"Typography Scale",
				"Spacing System",
				"Component Library",
				"Responsive Grid",
				"Accessibility Standards",
				"Animation Guidelines",
				"Dark Mode Support",
			},
			FeatureLabel: "UI/UX Design System",
		},
		{
			Kind:         Frontend,
			DisplayName:  "Frontend Developer",
			Icon:         "💻",
			Description:  "Creates responsive UI with React/Next.js/React Native",
			Expertise:    "Frontend architecture, UI components, state management, responsive design",
			Capabilities: []string{"React Development", "Responsive Design", "State Management", "Routing"},
			Output:       "Complete frontend application with components and pages",
			Template:     "frontend.tmpl",
			Features:     []string{"UI Components", "API Integration", "Routing"},
			FeatureLabel: "Frontend Application",
			Annotate: func(_ string, tc TaskContext) map[string]any {
				return map[string]any{"platform": tc["platform"]}
			},
		},
		{
			Kind:         ImageAssets,
			DisplayName:  "Image Generator",
			Icon:         "🖼️",
			Description:  "Generates visual assets specifications and image guidelines",
			Expertise:    "Visual assets, iconography, image optimization",
			Capabilities: []string{"Logo Design", "Icons", "Illustrations", "Asset Management"},
			Output:       "Image specifications, AI generation prompts, SVG code",
			Template:     "image_assets.tmpl",
			Features: []string{
				"AI image generation prompts provided",
				"Design specifications included",
				"Implementation guidelines ready",
				"Free stock photo resources listed",
				"SVG code for simple graphics",
			},
			FeatureLabel: "Visual Assets",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"asset_types": []string{"logo", "hero", "icons"}}
			},
		},
		{
			Kind:         Security,
			DisplayName:  "Security Auditor",
			Icon:         "🔒",
			Description:  "Performs security audits and implements security measures",
			Expertise:    "Application security, OWASP, authentication, encryption",
			Capabilities: []string{"Vulnerability Detection", "OWASP Compliance", "Auth Security", "Encryption"},
			Output:       "Security audit report, security implementations",
			Template:     "security.tmpl",
			Features: []string{
				"Authentication Security",
				"Authorization & RBAC",
				"Input Validation",
				"Data Encryption",
				"API Security",
				"OWASP Compliance",
				"Security Monitoring",
				"Vulnerability Prevention",
			},
			FeatureLabel: "Security Hardening",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"risk_level": "low"}
			},
		},
		{
			Kind:         Performance,
			DisplayName:  "Performance Optimizer",
			Icon:         "⚡",
			Description:  "Optimizes code, queries, and application performance",
			Expertise:    "Performance engineering, caching, profiling",
			Capabilities: []string{"Code Optimization", "Caching", "Query Optimization", "Bundle Size"},
			Output:       "Performance optimization plan and implementations",
			Template:     "performance.tmpl",
			Features: []string{
				"Database Query Optimization",
				"API Response Caching",
				"Frontend Code Splitting",
				"Image Optimization",
				"Redis Caching",
				"CDN Configuration",
				"Bundle Size Reduction",
				"React Performance Patterns",
			},
			FeatureLabel: "Performance Optimization",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"expected_improvement": "50-70% faster load times"}
			},
		},
		{
			Kind:         Testing,
			DisplayName:  "Testing Engineer",
			Icon:         "🧪",
			Description:  "Creates comprehensive test suites for all layers",
			Expertise:    "Test strategy, automation, coverage",
			Capabilities: []string{"Unit Testing", "Integration Tests", "E2E Tests", "Performance Tests"},
			Output:       "Complete test suite with >85% coverage",
			Template:     "testing.tmpl",
			Features: []string{
				"Unit Tests",
				"Integration Tests",
				"E2E Tests",
				"Performance Tests",
				"Security Tests",
				"API Contract Tests",
			},
			FeatureLabel: "Automated Tests",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"estimated_coverage": "85%+"}
			},
		},
		{
			Kind:         DevOps,
			DisplayName:  "DevOps Engineer",
			Icon:         "🐳",
			Description:  "Sets up CI/CD pipelines and deployment infrastructure",
			Expertise:    "Containers, CI/CD, infrastructure as code, monitoring",
			Capabilities: []string{"Docker", "Kubernetes", "CI/CD", "Monitoring"},
			Output:       "Docker configs, K8s manifests, CI/CD pipelines",
			Template:     "devops.tmpl",
			Features: []string{
				"Docker Configuration",
				"CI/CD Pipeline",
				"Kubernetes Deployment",
				"Infrastructure as Code",
				"Monitoring Setup",
				"Security Configuration",
				"Backup Strategy",
				"Development Workflow",
			},
			FeatureLabel: "CI/CD & Deployment",
			Annotate: func(_ string, tc TaskContext) map[string]any {
				target := tc["deployment_target"]
				if target == "" {
					target = "docker"
				}
				return map[string]any{"deployment_target": target}
			},
		},
		{
			Kind:         Documentation,
			DisplayName:  "Documentation Writer",
			Icon:         "📝",
			Description:  "Generates comprehensive technical documentation",
			Expertise:    "Technical writing, API documentation, developer guides",
			Capabilities: []string{"README", "API Docs", "Developer Guides", "User Guides"},
			Output:       "Complete documentation set (README, API docs, guides)",
			Template:     "documentation.tmpl",
			Features: []string{
				"README.md",
				"API.md",
				"DEVELOPER.md",
				"DEPLOYMENT.md",
				"USER_GUIDE.md",
				"CHANGELOG.md",
			},
			FeatureLabel: "Documentation",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"total_sections": 10}
			},
		},
		{
			Kind:         CodeReview,
			DisplayName:  "Code Reviewer",
			Icon:         "✅",
			Description:  "Reviews code quality, best practices, and maintainability",
			Expertise:    "Code quality, refactoring, best practices",
			Capabilities: []string{"Code Quality", "Best Practices", "Refactoring", "Quality Score"},
			Output:       "Code review report with recommendations",
			Template:     "code_review.tmpl",
			Features: []string{
				"Code Quality",
				"Best Practices",
				"Performance",
				"Security",
				"Type Safety",
				"Testing Coverage",
				"Documentation",
				"Maintainability",
			},
			FeatureLabel: "Code Review",
			Annotate: func(_ string, _ TaskContext) map[string]any {
				return map[string]any{"quality_score": "TBD"}
			},
		},
	}
}
