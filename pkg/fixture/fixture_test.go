package fixture

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestServesPageContract(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET / failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	html := string(body)

	for _, want := range []string{
		`id="settings-button"`,
		`id="settings-panel" class="settings-panel hidden"`,
		`id="hsk-level"`,
		`<option value="5">`,
		`assets/js/app.js`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("page missing %s", want)
		}
	}
}

func TestServesScript(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/assets/js/app.js")
	if err != nil {
		t.Fatalf("GET app.js failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET app.js status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `classList.toggle("hidden")`) {
		t.Error("script does not toggle the hidden class")
	}
}
