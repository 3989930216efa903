package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/expr"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/form"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/params"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/shape"
)

func loadDocument(data []byte) (*flowdoc.Graph, error) {
	return flowdoc.Load(data, flowdoc.WithKinds(form.Kinds()))
}

func loadFile(path string) (*flowdoc.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return loadDocument(data)
}

// problems lists everything wrong with g that loading does not reject.
func problems(g *flowdoc.Graph, requireForm bool) []error {
	var out []error
	for _, p := range g.Pages() {
		if requireForm {
			if err := p.ValidateForm(); err != nil {
				out = append(out, fmt.Errorf("page %s: %w", p.ID, err))
			}
		}
		for _, s := range p.Shapes() {
			for _, key := range []string{shape.KeyInputParams, shape.KeyOutputParams} {
				tree, err := s.Params(key)
				if err != nil {
					out = append(out, err)
					continue
				}
				for _, verr := range params.Validate(tree) {
					verr.ShapeID = s.ID
					out = append(out, verr)
				}
			}
			if src := s.VisibleWhen(); src != "" {
				if err := expr.Check(src); err != nil {
					out = append(out, fmt.Errorf("shape %s %s: %w", s.ID, shape.KeyVisibleWhen, err))
				}
			}
		}
	}
	return out
}

// ValidateCmd checks documents.
type ValidateCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Documents to check."`
	Form  bool     `help:"Require every page to hold exactly one form root."`
}

func (c *ValidateCmd) Run(a *app) error {
	bad := 0
	for _, path := range c.Files {
		g, err := loadFile(path)
		if err != nil {
			fmt.Fprintf(a.out, "%s: %v\n", path, err)
			bad++
			continue
		}
		errs := problems(g, c.Form)
		for _, err := range errs {
			fmt.Fprintf(a.out, "%s: %v\n", path, err)
		}
		if len(errs) > 0 {
			bad++
			continue
		}
		fmt.Fprintf(a.out, "%s: ok\n", path)
	}
	if bad > 0 {
		fmt.Fprintf(a.out, "%d of %d documents invalid\n", bad, len(c.Files))
		return errReported
	}
	return nil
}

// FmtCmd rewrites documents in canonical form.
type FmtCmd struct {
	Files  []string `arg:"" type:"existingfile" help:"Documents to format."`
	Write  bool     `short:"w" help:"Rewrite files in place instead of printing."`
	Indent int      `default:"2" help:"Spaces per indentation level."`
}

func (c *FmtCmd) Run(a *app) error {
	for _, path := range c.Files {
		g, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		data, err := g.Serialize()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", spaces(c.Indent)); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		buf.WriteByte('\n')

		if !c.Write {
			if _, err := a.out.Write(buf.Bytes()); err != nil {
				return err
			}
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, buf.Bytes(), info.Mode().Perm()); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		a.logger.Debug("formatted document", "path", path, "doc_id", g.ID)
	}
	return nil
}

func spaces(n int) string {
	if n < 0 {
		n = 0
	}
	return string(bytes.Repeat([]byte{' '}, n))
}

// Summary describes one document.
type Summary struct {
	Path   string         `json:"path"`
	ID     string         `json:"id"`
	Pages  int            `json:"pages"`
	Shapes int            `json:"shapes"`
	Types  map[string]int `json:"types"`
}

func summarize(path string, g *flowdoc.Graph) Summary {
	sum := Summary{Path: path, ID: g.ID, Types: make(map[string]int)}
	for _, p := range g.Pages() {
		sum.Pages++
		for _, s := range p.Shapes() {
			sum.Shapes++
			sum.Types[s.Type]++
		}
	}
	return sum
}

// StatsCmd summarizes documents.
type StatsCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Documents to summarize."`
	JSON  bool     `name:"json" help:"Print JSON instead of a table."`
}

func (c *StatsCmd) Run(a *app) error {
	sums := make([]Summary, 0, len(c.Files))
	for _, path := range c.Files {
		g, err := loadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		sums = append(sums, summarize(path, g))
	}

	if c.JSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tID\tPAGES\tSHAPES\tTYPES")
	for _, s := range sums {
		var types []byte
		for i, typ := range slices.Sorted(maps.Keys(s.Types)) {
			if i > 0 {
				types = append(types, ' ')
			}
			types = fmt.Appendf(types, "%s=%d", typ, s.Types[typ])
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.Path, s.ID, s.Pages, s.Shapes, types)
	}
	return tw.Flush()
}
