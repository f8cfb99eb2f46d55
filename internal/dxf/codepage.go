package dxf

import (
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// codepageNames maps DXF $DWGCODEPAGE numbers to WHATWG encoding labels.
var codepageNames = map[int]string{
	874: "windows-874",
	932: "shift_jis",
	936: "gbk",
	949: "euc-kr",
	950: "big5",
}

// CodepageEncoding returns the text encoding for a $DWGCODEPAGE value such
// as ANSI_950. ok is false for UTF-8, unknown, or empty codepages.
func CodepageEncoding(codepage string) (encoding.Encoding, bool) {
	cp := strings.ToUpper(strings.TrimSpace(codepage))
	if cp == "" || cp == "UTF-8" || cp == "UTF8" {
		return nil, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(cp, "ANSI_"))
	if err != nil {
		return nil, false
	}
	name, known := codepageNames[n]
	if !known {
		if n < 1250 || n > 1258 {
			return nil, false
		}
		name = "windows-" + strconv.Itoa(n)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, false
	}
	return enc, true
}

// layerDecoder converts layer names stored in the drawing codepage to UTF-8.
type layerDecoder struct {
	enc   encoding.Encoding
	cache map[string]string
}

func newLayerDecoder(h header) *layerDecoder {
	d := &layerDecoder{cache: make(map[string]string)}
	if h.usesUTF8() {
		return d
	}
	if enc, ok := CodepageEncoding(h.codepage); ok {
		d.enc = enc
	}
	return d
}

func (d *layerDecoder) decode(s string) string {
	if d.enc == nil || s == "" || isASCII(s) {
		return s
	}
	if out, ok := d.cache[s]; ok {
		return out
	}
	out, err := d.enc.NewDecoder().String(s)
	if err != nil {
		zap.L().Debug("dxf: layer name decode failed", zap.String("layer", s), zap.Error(err))
		out = s
	}
	d.cache[s] = out
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
