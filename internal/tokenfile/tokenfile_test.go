package tokenfile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	. "github.com/onsi/gomega"

	"authrelay/internal/token"
	"authrelay/internal/userinfo"
)

func TestSaveAndLoad(t *testing.T) {
	g := NewWithT(t)

	path := filepath.Join(t.TempDir(), "tokens.json")
	tokens := &token.Set{
		AccessToken:  "AT1",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: "RT1",
	}
	profile := &userinfo.Profile{Email: "user@example.com", Name: "Test User"}

	g.Expect(Save(path, tokens, profile)).To(Succeed())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))
	}

	doc, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(doc.Tokens).To(Equal(tokens))
	g.Expect(doc.UserInfo).To(Equal(profile))
}

func TestLoadMissing(t *testing.T) {
	g := NewWithT(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	g.Expect(err).To(HaveOccurred())
}
