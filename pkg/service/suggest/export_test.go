package suggest

// Export internal functions for testing
var (
	BuildThresholdPrompt = buildThresholdPrompt
	BuildControlPrompt   = buildControlPrompt
	ParseThresholds      = parseThresholds
	ParseControls        = parseControls
	ThresholdSchema      = thresholdSchema
	ControlSchema        = controlSchema
)
