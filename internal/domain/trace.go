package domain

// Frame is one (file, function) pair observed while a test body executed
type Frame struct {
	File     string
	Function string
}
