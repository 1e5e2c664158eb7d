package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Landing page (anonymous view)
	RouteIndex = "/"

	// Auth Routes - Login & Logout
	RouteAuthLogin    = "/auth/login"
	RouteAuthCallback = "/auth/callback"
	RouteLogout       = "/logout"

	// Protected Routes
	RouteProfile = "/profile"
)
