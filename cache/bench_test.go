package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// benchmarkMix exercises a read/write mix against a warm cache while one
// worker in every collectEvery operations runs a collection cycle.
func benchmarkMix(b *testing.B, readsPct, collectEvery int) {
	l, _ := logtest.NewNullLogger()
	l.SetLevel(logrus.WarnLevel)
	c, err := New[string, *fakeRes](Options[string, *fakeRes]{Logger: l})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(c.Shutdown)

	for i := 0; i < 50_000; i++ {
		k := "k:" + strconv.Itoa(i)
		_ = c.Put(k, newFake(k, closeSync))
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			switch {
			case collectEvery > 0 && i%collectEvery == 0:
				c.Collect()
			case r.Intn(100) < readsPct:
				c.Get(k)
			default:
				_ = c.Put(k, newFake(k, closeSync))
			}
			i++
		}
	})
}

func BenchmarkCache_Reads(b *testing.B) { benchmarkMix(b, 100, 0) }
func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90, 0) }
func BenchmarkCache_90r10w_Collect(b *testing.B) { benchmarkMix(b, 90, 1_000) }
func BenchmarkCache_50r50w_Collect(b *testing.B) { benchmarkMix(b, 50, 1_000) }
