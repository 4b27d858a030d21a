package session

import (
	"context"
	"fmt"
	"strings"

	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
	"github.com/shakram02/go-chatdb/internal/relational"
)

func (s *Session) showSchema(ctx context.Context) (State, error) {
	sch, err := s.conn.Introspect(ctx)
	if err != nil {
		s.report(err)
		return StateStore, nil
	}
	s.out.Heading("Available %s %s:", s.conn.Label(), s.nouns().Items)
	s.out.Block(sch.String())
	return StateStore, nil
}

func (s *Session) listTargets(ctx context.Context) {
	n := s.nouns()
	names, err := s.conn.ListTargets(ctx)
	if err != nil {
		s.report(err)
		return
	}
	if len(names) == 0 {
		s.out.Info("No %s found in the database.", n.items)
		return
	}
	s.out.Heading("Available %s:", n.Items)
	s.out.List(names)
}

func (s *Session) upload(ctx context.Context) (State, error) {
	switch c := s.conn.(type) {
	case *relationalConn:
		return s.uploadScript(ctx, c)
	case *documentConn:
		return s.uploadDocuments(ctx, c)
	}
	s.report(chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "uploads are not supported for %s", s.conn.Label()))
	return StateStore, nil
}

func (s *Session) uploadScript(ctx context.Context, c *relationalConn) (State, error) {
	path, err := s.ask("Enter the path to the "+relational.ScriptExtension+" file", "")
	if err != nil {
		return StateStore, err
	}
	if path == "" {
		s.out.Info("No file given.")
		return StateStore, nil
	}

	if c.manager() {
		name, err := s.ask("Enter the database to use or create (leave empty to keep the current one)", "")
		if err != nil {
			return StateStore, err
		}
		if name != "" && name != c.DatabaseName() {
			if err := s.useDatabase(ctx, c, name); err != nil {
				s.report(err)
				return StateStore, nil
			}
			s.out.Info("Switched to database '%s'.", name)
		}
	}

	stop := s.out.Spin("Uploading " + path)
	n, err := c.store.IngestFile(ctx, path)
	stop()
	if err != nil {
		s.report(err)
		if n > 0 {
			s.out.Info("%d %s applied before the failure.", n, plural(n, "statement was", "statements were"))
		}
		return StateStore, nil
	}

	s.out.Info("Executed %d %s from %s.", n, plural(n, "statement", "statements"), path)
	s.listTargets(ctx)
	return StateStore, nil
}

func (s *Session) uploadDocuments(ctx context.Context, c *documentConn) (State, error) {
	path, err := s.ask("Enter the path to the .json file", "")
	if err != nil {
		return StateStore, err
	}
	if path == "" {
		s.out.Info("No file given.")
		return StateStore, nil
	}
	collection, err := s.ask("Enter the collection name to insert data into", "")
	if err != nil {
		return StateStore, err
	}

	stop := s.out.Spin("Uploading " + path)
	n, err := c.store.IngestFile(ctx, path, collection)
	stop()
	if err != nil {
		s.report(err)
		return StateStore, nil
	}

	s.out.Info("Inserted %d %s into '%s'.", n, plural(n, "document", "documents"), collection)
	s.listTargets(ctx)
	return StateStore, nil
}

func (s *Session) drop(ctx context.Context) (State, error) {
	n := s.nouns()
	s.out.Heading("What would you like to drop?")
	s.out.Info("1. Drop specific %s", n.items)
	s.out.Info("2. Drop the entire %s", n.scope)

	choice, err := s.in.Prompt("Enter your choice (1/2): ")
	if err != nil {
		return StateStore, err
	}
	switch strings.TrimSpace(choice) {
	case "1":
		return s.dropTargets(ctx)
	case "2":
		return s.dropAll(ctx)
	}
	s.out.Info("Invalid choice. Please select 1 or 2.")
	return StateStore, nil
}

func (s *Session) dropTargets(ctx context.Context) (State, error) {
	n := s.nouns()
	existing, err := s.conn.ListTargets(ctx)
	if err != nil {
		s.report(err)
		return StateStore, nil
	}
	if len(existing) == 0 {
		s.out.Info("No %s found in the database.", n.items)
		return StateStore, nil
	}
	s.out.Heading("Available %s:", n.Items)
	s.out.List(existing)

	answer, err := s.in.Prompt(fmt.Sprintf("Enter the names of the %s to drop (comma-separated): ", n.items))
	if err != nil {
		return StateStore, err
	}
	names := splitNames(answer)
	if len(names) == 0 {
		s.out.Info("No %s selected.", n.items)
		return StateStore, nil
	}

	ok, err := s.confirm(fmt.Sprintf("Are you sure you want to drop the following %s: %s? This action cannot be undone.", n.items, strings.Join(names, ", ")))
	if err != nil {
		return StateStore, err
	}
	if !ok {
		s.out.Info("Drop operation cancelled.")
		return StateStore, nil
	}

	switch c := s.conn.(type) {
	case *relationalConn:
		err = c.store.DropTables(ctx, names)
	case *documentConn:
		err = c.store.DropCollections(ctx, names)
	}
	if err != nil {
		s.report(err)
		return StateStore, nil
	}
	s.out.Info("Dropped %s: %s.", n.items, strings.Join(names, ", "))
	return StateStore, nil
}

func (s *Session) dropAll(ctx context.Context) (State, error) {
	switch c := s.conn.(type) {
	case *relationalConn:
		return s.dropSchema(ctx, c)
	case *documentConn:
		return s.dropDocumentDatabase(ctx, c)
	}
	return StateStore, nil
}

// dropSchema drops the connected database, then either switches to another
// database or leaves the store for the main menu.
func (s *Session) dropSchema(ctx context.Context, c *relationalConn) (State, error) {
	if !c.dropper() {
		s.report(chatdberrors.Newf(chatdberrors.ErrTypeUnsupported, "dropping the entire schema is not supported for %s", c.Label()).
			WithSuggestion("Drop specific tables instead"))
		return StateStore, nil
	}
	current := c.DatabaseName()
	if current == "" {
		s.out.Info("No database is currently selected.")
		return StateStore, nil
	}

	ok, err := s.confirm(fmt.Sprintf("Are you sure you want to drop the entire schema '%s'? This action cannot be undone.", current))
	if err != nil {
		return StateStore, err
	}
	if !ok {
		s.out.Info("Drop operation cancelled.")
		return StateStore, nil
	}

	if err := c.store.DropDatabase(ctx); err != nil {
		s.report(err)
		return StateStore, nil
	}
	s.generated = nil
	s.out.Info("Schema '%s' has been dropped.", current)

	databases, err := c.store.ListDatabases(ctx)
	if err != nil {
		s.report(err)
	} else if len(databases) > 0 {
		s.out.Heading("Available Schemas:")
		s.out.List(databases)
	}

	name, err := s.ask("Enter a schema to use (created if missing), or leave empty to return to the main menu", "")
	if err != nil {
		return StateStore, err
	}
	if name == "" {
		s.disconnect(ctx)
		s.out.Info("Returning to the main menu.")
		return StateMain, nil
	}

	if err := s.useDatabase(ctx, c, name); err != nil {
		s.report(err)
		s.disconnect(ctx)
		return StateMain, nil
	}
	s.out.Info("Switched to schema '%s'.", name)
	return StateStore, nil
}

func (s *Session) dropDocumentDatabase(ctx context.Context, c *documentConn) (State, error) {
	current := c.DatabaseName()
	ok, err := s.confirm(fmt.Sprintf("Are you sure you want to drop the entire database '%s'? This action cannot be undone.", current))
	if err != nil {
		return StateStore, err
	}
	if !ok {
		s.out.Info("Drop operation cancelled.")
		return StateStore, nil
	}

	if err := c.store.DropDatabase(ctx); err != nil {
		s.report(err)
		return StateStore, nil
	}
	s.out.Info("Database '%s' has been dropped. Returning to the main menu.", current)
	s.disconnect(ctx)
	return StateMain, nil
}

func (s *Session) useDatabase(ctx context.Context, c *relationalConn, name string) error {
	if err := c.store.EnsureDatabase(ctx, name); err != nil {
		return err
	}
	if err := c.store.SwitchDatabase(ctx, name); err != nil {
		return err
	}
	s.generated = nil
	return nil
}

func splitNames(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}
