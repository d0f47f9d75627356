package display

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

// decodePayloads strips the escape framing and base64-decodes the
// concatenated chunk payloads.
func decodePayloads(t *testing.T, output string) []byte {
	t.Helper()
	var encoded strings.Builder
	for _, esc := range strings.Split(output, apcTerm) {
		if esc == "" {
			continue
		}
		body := strings.TrimPrefix(esc, apcStart)
		_, payload, ok := strings.Cut(body, ";")
		if !ok {
			t.Fatalf("escape without control/payload separator: %q", esc)
		}
		encoded.WriteString(payload)
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		t.Fatalf("payloads do not concatenate to valid base64: %v", err)
	}
	return decoded
}

func TestWriteGraphics_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeGraphics(&buf, nil); err != nil {
		t.Fatalf("writeGraphics() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty image produced output %q", buf.String())
	}
}

func TestWriteGraphics_SingleChunk(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("not really a png")
	if err := writeGraphics(&buf, data); err != nil {
		t.Fatalf("writeGraphics() error = %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, apcStart+"a=T,f=100,q=2,m=0;") {
		t.Errorf("first escape control = %q, want transmit keys and final-chunk flag", output)
	}
	if !strings.HasSuffix(output, apcTerm) {
		t.Error("output should end with the escape terminator")
	}
	if got := decodePayloads(t, output); !bytes.Equal(got, data) {
		t.Errorf("decoded payload = %q, want %q", got, data)
	}
}

func TestWriteGraphics_ChunkedTransmission(t *testing.T) {
	var buf bytes.Buffer
	data := make([]byte, rawChunk*2+100)
	for i := range data {
		data[i] = byte(i)
	}
	if err := writeGraphics(&buf, data); err != nil {
		t.Fatalf("writeGraphics() error = %v", err)
	}

	output := buf.String()
	if got := strings.Count(output, apcStart); got != 3 {
		t.Errorf("escape count = %d, want 3", got)
	}
	if !strings.Contains(output, "a=T,f=100,q=2,m=1;") {
		t.Error("first chunk should carry the control keys and more-data flag")
	}
	if !strings.Contains(output, apcStart+"m=0;") {
		t.Error("last chunk should carry only the final-chunk flag")
	}
	if got := decodePayloads(t, output); !bytes.Equal(got, data) {
		t.Error("chunked payloads do not decode back to the image data")
	}
}

func TestWriteGraphics_ExactChunkBoundary(t *testing.T) {
	var buf bytes.Buffer
	if err := writeGraphics(&buf, make([]byte, rawChunk)); err != nil {
		t.Fatalf("writeGraphics() error = %v", err)
	}
	if got := strings.Count(buf.String(), apcStart); got != 1 {
		t.Errorf("escape count = %d for exactly one chunk of data, want 1", got)
	}
}

func TestWriteGraphics_WriteError(t *testing.T) {
	w := &errorWriter{err: bytes.ErrTooLarge}
	if err := writeGraphics(w, []byte("test")); err == nil {
		t.Error("expected error from failing writer")
	}
}

type errorWriter struct {
	err error
}

func (w *errorWriter) Write(p []byte) (int, error) {
	return 0, w.err
}
