package main

import (
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/store"
)

// WatchCmd reports documents changed by hand in a file store directory.
type WatchCmd struct {
	Dir  string `arg:"" optional:"" type:"path" help:"Store directory. Defaults to store.dsn."`
	Save bool   `help:"Record valid edits as new revisions."`
}

func (c *WatchCmd) Run(a *app) error {
	dir := c.Dir
	if dir == "" {
		dir = a.settings.Store.DSN
	}
	fs, err := store.NewFileStore(dir)
	if err != nil {
		return err
	}
	defer fs.Close()

	w, err := fs.Watch(func(id string, data []byte) {
		g, err := loadDocument(data)
		if err != nil {
			a.logger.Warn("invalid document", "doc_id", id, "error", err)
			return
		}
		if errs := problems(g, false); len(errs) > 0 {
			for _, err := range errs {
				a.logger.Warn("document problem", "doc_id", id, "error", err)
			}
		}
		a.logger.Info("document changed", "doc_id", id, "pages", len(g.Pages()), "shapes", g.ShapeCount())
		if c.Save {
			if err := fs.Save(a.ctx, id, data); err != nil {
				a.logger.Error("save revision", "doc_id", id, "error", err)
			}
		}
	}, a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	a.logger.Info("watching documents", "dir", dir)
	<-a.ctx.Done()
	return nil
}
