package bridge

// Test-only exports for internal functions.
var (
	EncodeForm       = encodeForm
	EncodeBodyValue  = encodeBodyValue
	ReconstructPath  = reconstructPath
	NewCancelledBody = newCancelledBody
	NewBufferedBody  = newBufferedBody
)
