package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyP     = 80  // P key (ASCII), toggles the profiler
	KeyR     = 82  // R key (ASCII), rewinds the transport
	KeySpace = 32  // Spacebar (ASCII), pauses the transport
	KeyEsc   = 256 // Escape key (GLFW)
)
