package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

// Kitty graphics protocol framing: each APC escape carries at most 4096
// bytes of base64 payload. rawChunk is the largest multiple of 3 that
// encodes within that, so chunk boundaries stay aligned with base64 groups
// and the payloads concatenate into one valid encoding.
const (
	apcStart = "\x1b_G"
	apcTerm  = "\x1b\\"
	rawChunk = 3072
)

// writeGraphics streams the image to the terminal as a kitty graphics
// transmission. The first escape carries the control keys (a=T transmit and
// display, f=100 PNG payload, q=2 suppress responses); continuation escapes
// carry only the more-data flag.
func writeGraphics(w io.Writer, data []byte) error {
	for first := true; len(data) > 0; first = false {
		n := len(data)
		if n > rawChunk {
			n = rawChunk
		}

		ctrl := "m=0"
		if len(data) > n {
			ctrl = "m=1"
		}
		if first {
			ctrl = "a=T,f=100,q=2," + ctrl
		}

		payload := base64.StdEncoding.EncodeToString(data[:n])
		if _, err := fmt.Fprintf(w, "%s%s;%s%s", apcStart, ctrl, payload, apcTerm); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
