package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Content: ContentConfig{
			BaseURL:   "https://api.alquran.cloud/v1",
			Edition:   "quran-uthmani",
			TimeoutMS: 10000,
		},
		Recognizer: RecognizerConfig{
			Backend:        BackendGoogle,
			LanguageCode:   "ar-SA",
			ScriptDelayMS:  250,
			RestartDelayMS: 500,
			MaxRestarts:    5,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Indicator: IndicatorConfig{
			SoundEnable:    true,
			DesktopNotify:  true,
			DesktopAppName: "hifz",
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
		Events: EventsConfig{
			Topic:    "hifz.recitation",
			ClientID: "hifz",
		},
	}
}
