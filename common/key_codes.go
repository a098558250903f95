package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyW = 87 // W key (ASCII) — move forward
	KeyA = 65 // A key (ASCII) — strafe left
	KeyS = 83 // S key (ASCII) — move back
	KeyD = 68 // D key (ASCII) — strafe right

	KeyTab = 258 // Tab key (GLFW) — cycle UI visibility
	KeyEsc = 256 // Escape key (GLFW) — quit
)
