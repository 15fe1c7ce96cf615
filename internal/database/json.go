package database

import (
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/uptrace/bun/extra/bunjson"
)

var registerJSON sync.Once

// sonicJSON routes bun's jsonb encoding through sonic.
type sonicJSON struct{}

func (sonicJSON) Marshal(v any) ([]byte, error)      { return sonic.Marshal(v) }
func (sonicJSON) Unmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }

func (sonicJSON) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicJSON) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// useSonicJSON installs sonic as bun's JSON provider once per process.
func useSonicJSON() {
	registerJSON.Do(func() { bunjson.SetProvider(sonicJSON{}) })
}
