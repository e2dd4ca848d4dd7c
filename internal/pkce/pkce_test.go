package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

func TestVerifier(t *testing.T) {
	t.Run("encodes 32 bytes without padding", func(t *testing.T) {
		g := NewWithT(t)

		v, err := Verifier()

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(v).NotTo(ContainSubstring("="))

		b, err := base64.RawURLEncoding.DecodeString(v)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(b).To(HaveLen(32))
	})

	t.Run("is not repeated across calls", func(t *testing.T) {
		g := NewWithT(t)

		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			v, err := Verifier()
			g.Expect(err).NotTo(HaveOccurred())
			g.Expect(seen[v]).To(BeFalse())
			seen[v] = true
		}
	})
}

func TestChallenge(t *testing.T) {
	t.Run("is the base64url SHA-256 of the verifier", func(t *testing.T) {
		g := NewWithT(t)

		v, err := Verifier()
		g.Expect(err).NotTo(HaveOccurred())

		c := Challenge(v)
		g.Expect(c).NotTo(ContainSubstring("="))

		sum, err := base64.RawURLEncoding.DecodeString(c)
		g.Expect(err).NotTo(HaveOccurred())

		expected := sha256.Sum256([]byte(v))
		g.Expect(sum).To(Equal(expected[:]))
	})

	t.Run("is deterministic", func(t *testing.T) {
		g := NewWithT(t)

		g.Expect(Challenge("fixed-verifier")).To(Equal(Challenge("fixed-verifier")))
	})
}

func TestState(t *testing.T) {
	t.Run("encodes 16 bytes without padding", func(t *testing.T) {
		g := NewWithT(t)

		s, err := State()

		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(strings.ContainsRune(s, '=')).To(BeFalse())

		b, err := base64.RawURLEncoding.DecodeString(s)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(b).To(HaveLen(16))
	})
}
