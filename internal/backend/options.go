package backend

import (
	"encoding/json"
	"strings"
)

// Options describes the pipeline settings forwarded with an encapsulation
// request. All fields are optional on the wire; zero values are filled from
// DefaultOptions before submission.
type Options struct {
	CompressionMode string `json:"compression_mode,omitempty"`
	NoiseLevel      int    `json:"noise_level,omitempty"`
	Encryption      string `json:"encryption,omitempty"`
	Hashing         string `json:"hashing,omitempty"`
	Passphrase      string `json:"passphrase,omitempty"`
	KeyIterations   int    `json:"key_iterations,omitempty"`
	PolytopeType    string `json:"polytope_type,omitempty"`
	ZstdLevel       int    `json:"zstd_level,omitempty"`
	StegoLayers     int    `json:"stego_layers,omitempty"`
	StegoDynamic    *bool  `json:"stego_dynamic,omitempty"`
	StegoAdaptive   *bool  `json:"stego_adaptive,omitempty"`
	PolyBackend     string `json:"poly_backend,omitempty"`
}

// DefaultOptions returns the backend's documented defaults.
func DefaultOptions() Options {
	enabled := true
	return Options{
		CompressionMode: "high-ratio",
		NoiseLevel:      30,
		Encryption:      "aes-256-gcm",
		Hashing:         "sha-256",
		KeyIterations:   100000,
		PolytopeType:    "cube",
		ZstdLevel:       22,
		StegoLayers:     2,
		StegoDynamic:    &enabled,
		StegoAdaptive:   &enabled,
		PolyBackend:     "latte",
	}
}

// Normalized returns a copy with unset fields filled from DefaultOptions.
func (o Options) Normalized() Options {
	defaults := DefaultOptions()
	if strings.TrimSpace(o.CompressionMode) == "" {
		o.CompressionMode = defaults.CompressionMode
	}
	if o.NoiseLevel == 0 {
		o.NoiseLevel = defaults.NoiseLevel
	}
	if strings.TrimSpace(o.Encryption) == "" {
		o.Encryption = defaults.Encryption
	}
	if strings.TrimSpace(o.Hashing) == "" {
		o.Hashing = defaults.Hashing
	}
	if o.KeyIterations == 0 {
		o.KeyIterations = defaults.KeyIterations
	}
	if strings.TrimSpace(o.PolytopeType) == "" {
		o.PolytopeType = defaults.PolytopeType
	}
	if o.ZstdLevel == 0 {
		o.ZstdLevel = defaults.ZstdLevel
	}
	if o.StegoLayers == 0 {
		o.StegoLayers = defaults.StegoLayers
	}
	if o.StegoDynamic == nil {
		o.StegoDynamic = defaults.StegoDynamic
	}
	if o.StegoAdaptive == nil {
		o.StegoAdaptive = defaults.StegoAdaptive
	}
	if strings.TrimSpace(o.PolyBackend) == "" {
		o.PolyBackend = defaults.PolyBackend
	}
	return o
}

// RequiresPassphrase reports whether the selected encryption mode needs a
// passphrase to be supplied.
func (o Options) RequiresPassphrase() bool {
	mode := strings.ToLower(strings.TrimSpace(o.Encryption))
	return mode != "" && mode != "none"
}

// EncodeJSON marshals the normalized options for the multipart options field.
func (o Options) EncodeJSON() (json.RawMessage, error) {
	data, err := json.Marshal(o.Normalized())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// ParseOptions decodes raw option bytes, treating empty input as defaults.
func ParseOptions(raw json.RawMessage) (Options, error) {
	if len(raw) == 0 {
		return DefaultOptions(), nil
	}
	var opts Options
	if err := json.Unmarshal(raw, &opts); err != nil {
		return Options{}, err
	}
	return opts.Normalized(), nil
}
