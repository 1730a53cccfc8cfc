package benchmark

import (
	"testing"

	"github.com/kavyarao/streamfilter/internal/query/compiler"
	"github.com/kavyarao/streamfilter/internal/query/pattern"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
)

var sampleQueries = map[string]string{
	"noise":      "something good to watch with the family tonight",
	"single":     "comedies",
	"typical":    "action movies on netflix rated above 7",
	"dense":      "sci-fi shows on disney+ since 2015 until 2020 rated 6-8.5 from the us",
	"year_range": "films 2010-2019",
}

func BenchmarkCompile(b *testing.B) {
	table := pattern.Default()
	for name, text := range sampleQueries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				fragments := compiler.Compile(table, text)
				_ = fragments
			}
		})
	}
}

func BenchmarkCompileParallel(b *testing.B) {
	table := pattern.Default()
	text := sampleQueries["typical"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			fragments := compiler.Compile(table, text)
			_ = fragments
		}
	})
}

func BenchmarkReduce(b *testing.B) {
	table := pattern.Default()
	fragments := compiler.Compile(table, sampleQueries["dense"])
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		patch := reducer.Reduce(fragments, reducer.ContentMovie)
		_ = patch
	}
}

func BenchmarkTableConstruction(b *testing.B) {
	lookups := pattern.DefaultLookups()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		table, err := pattern.NewFromLookups(lookups)
		if err != nil {
			b.Fatal(err)
		}
		_ = table
	}
}
