package crypto

import (
	"crypto/rand"
	"testing"
)

func benchSeal(b *testing.B, size int) {
	master := make([]byte, 32)
	pt := make([]byte, size)
	_, _ = rand.Read(master)
	_, _ = rand.Read(pt)
	b.SetBytes(int64(size))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Seal(master, pt, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSeal1K(b *testing.B)  { benchSeal(b, 1024) }
func BenchmarkSeal32K(b *testing.B) { benchSeal(b, 32*1024) }

func BenchmarkOpen32K(b *testing.B) {
	master := make([]byte, 32)
	pt := make([]byte, 32*1024)
	_, _ = rand.Read(master)
	_, _ = rand.Read(pt)
	ct, tag, err := Seal(master, pt, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(pt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Open(master, ct, tag, nil); err != nil {
			b.Fatal(err)
		}
	}
}
