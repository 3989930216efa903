package benchmarks

import (
	"fmt"
	"testing"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

// buildGraph returns a graph with one page holding n inputs inside a div.
func buildGraph(b *testing.B, n int) *flowdoc.Graph {
	b.Helper()
	g := flowdoc.NewGraph(flowdoc.WithID("bench"))
	p := g.NewPage("page1")
	if err := g.InsertPage(p, -1); err != nil {
		b.Fatal(err)
	}
	if _, err := p.CreateShape(shape.TypeDiv, 0, 0, "div"); err != nil {
		b.Fatal(err)
	}
	for i := 0; i < n; i++ {
		s, err := p.NewShape(shape.TypeInput, 10, float64(i*30), shapeID(i))
		if err != nil {
			b.Fatal(err)
		}
		s.Container = "div"
		if err := p.Insert(s, -1); err != nil {
			b.Fatal(err)
		}
	}
	return g
}

func shapeID(i int) string {
	return fmt.Sprintf("in%d", i)
}

// BenchmarkNewGraph measures graph creation overhead.
func BenchmarkNewGraph(b *testing.B) {
	for i := 0; i < b.N; i++ {
		flowdoc.NewGraph()
	}
}

// BenchmarkCreateShape measures adding one shape to a page.
func BenchmarkCreateShape(b *testing.B) {
	for i := 0; i < b.N; i++ {
		p := flowdoc.NewPage("p")
		_, _ = p.CreateShape(shape.TypeLabel, 0, 0, "lbl")
	}
}

// BenchmarkCreateShape_100 measures filling a page with 100 shapes.
func BenchmarkCreateShape_100(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buildGraph(b, 100)
	}
}

// BenchmarkSerialize measures graph serialization at several sizes.
func BenchmarkSerialize(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("shapes_%d", n), func(b *testing.B) {
			g := buildGraph(b, n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = g.Serialize()
			}
		})
	}
}

// BenchmarkLoad measures parsing a serialized graph.
func BenchmarkLoad(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("shapes_%d", n), func(b *testing.B) {
			data, err := buildGraph(b, n).Serialize()
			if err != nil {
				b.Fatal(err)
			}
			b.SetBytes(int64(len(data)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = flowdoc.Load(data)
			}
		})
	}
}

// BenchmarkDescendants measures walking a container's children.
func BenchmarkDescendants(b *testing.B) {
	p := buildGraph(b, 500).Page("page1")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Descendants("div")
	}
}
