package fetcher

// statusResponse models the relevant parts of the mcsrvstat.us v3
// status document.
type statusResponse struct {
	Online  bool   `json:"online"`
	Version string `json:"version"`
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
		List   []struct {
			Name string `json:"name"`
			UUID string `json:"uuid"`
		} `json:"list"`
	} `json:"players"`
	MOTD struct {
		Clean []string `json:"clean"`
	} `json:"motd"`
	Software string `json:"software"`
	Debug    struct {
		Error map[string]string `json:"error"`
	} `json:"debug"`
}
