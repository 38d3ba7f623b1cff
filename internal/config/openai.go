package config

// GetOpenAIKey returns the OpenAI API key, empty when unconfigured.
func GetOpenAIKey() string {
	return GetEnvOrDefault("OPENAI_KEY", "")
}

// GetOpenAIModel returns the chat model used for intake and diagnosis.
func GetOpenAIModel() string {
	return GetEnvOrDefault("OPENAI_MODEL", "gpt-4o")
}

// GetOpenAIVisionModel returns the model used for image analysis.
func GetOpenAIVisionModel() string {
	return GetEnvOrDefault("OPENAI_VISION_MODEL", "gpt-4o")
}
