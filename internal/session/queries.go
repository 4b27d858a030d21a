package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/shakram02/go-chatdb/internal/catalog"
	chatdberrors "github.com/shakram02/go-chatdb/internal/errors"
)

func (s *Session) sampleQueries(ctx context.Context) (State, error) {
	limit := s.cfg.Generator.SampleCount
	if s.conn.Store() == catalog.StoreDocument {
		limit = s.cfg.Generator.DocumentSampleCount
	}

	queries, ok := s.generate(ctx, catalog.SetSample, limit)
	if !ok {
		return StateQueries, nil
	}
	if len(queries) == 0 {
		s.out.Info("No meaningful sample queries found or not enough columns to generate queries.")
		return StateQueries, nil
	}

	s.generated = queries
	s.out.Heading("Generated Queries:")
	for i, q := range queries {
		s.out.Query(i+1, q)
	}
	return StateQueries, nil
}

func (s *Session) constructQueries(ctx context.Context) (State, error) {
	store := s.conn.Store()
	names := s.catalog.ConstructNames(store)

	input, err := s.in.Prompt(fmt.Sprintf("Enter the construct (%s): ", strings.Join(names, ", ")))
	if err != nil {
		return StateQueries, err
	}
	input = strings.TrimSpace(input)

	construct, ok := s.catalog.Construct(store, input)
	if !ok {
		s.out.Info("The %s construct is not supported. Supported constructs: %s.", input, strings.Join(names, ", "))
		return StateQueries, nil
	}

	s.out.Heading("%s", construct.Name)
	s.out.Info("%s", construct.Explanation)

	queries, ok := s.generate(ctx, construct.Name, s.cfg.Generator.ConstructCount)
	if !ok {
		return StateQueries, nil
	}
	if len(queries) == 0 {
		s.out.Info("No meaningful %s queries found or not enough data to generate them.", construct.Name)
		return StateQueries, nil
	}

	s.generated = queries
	s.out.Info("Here are some examples of queries using %s based on the available data:\n", construct.Name)
	for i, q := range queries {
		s.out.Query(i+1, q)
	}
	return StateQueries, nil
}

// generate introspects the store and runs the generator over a template set.
func (s *Session) generate(ctx context.Context, set string, limit int) ([]catalog.Query, bool) {
	sch, err := s.conn.Introspect(ctx)
	if err != nil {
		s.report(err)
		return nil, false
	}

	stop := s.out.Spin("Validating candidate queries")
	report, err := s.generator.Generate(ctx, sch, set, limit)
	stop()
	if err != nil {
		s.report(err)
		return nil, false
	}

	s.reportFailures(report.Failures)
	return report.Accepted, true
}

// reportFailures prints candidates that failed to execute. Candidates that
// never got a statement are only logged.
func (s *Session) reportFailures(failures []catalog.Failure) {
	for _, f := range failures {
		if f.Query.Statement == "" || chatdberrors.IsType(f.Err, chatdberrors.ErrTypeSubstitution) {
			s.logger.Debug("template skipped",
				zap.String("template", f.Query.Template),
				zap.String("target", f.Query.Target),
				zap.Error(f.Err))
			continue
		}
		s.out.Info("Query failed: %s", f.Query.Statement)
		s.out.Error(f.Err)
	}
}

func (s *Session) executeGenerated(ctx context.Context) (State, error) {
	if len(s.generated) == 0 {
		s.out.Info("No queries available to execute. Please generate sample queries first.")
		return StateQueries, nil
	}

	s.out.Heading("Available Queries:")
	for i, q := range s.generated {
		s.out.Info("%d. %s", i+1, q.Title)
	}

	answer, err := s.in.Prompt("Enter the query number you want to execute: ")
	if err != nil {
		return StateQueries, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(answer))
	if convErr != nil || n < 1 || n > len(s.generated) {
		s.out.Info("Invalid query number. Please try again.")
		return StateQueries, nil
	}

	q := s.generated[n-1]
	s.out.Heading("Executing Query:")
	s.out.Query(0, q)
	s.execute(ctx, q)
	return StateQueries, nil
}

func (s *Session) naturalLanguage(ctx context.Context) (State, error) {
	input, err := s.in.Prompt("Enter your natural language query: ")
	if err != nil {
		return StateStore, err
	}
	s.in.AppendHistory(input)

	sch, err := s.conn.Introspect(ctx)
	if err != nil {
		s.report(err)
		return StateStore, nil
	}

	q, err := s.translator.Translate(sch, input)
	if err != nil {
		s.report(err)
		s.out.Info("Could not process the natural language query.")
		return StateStore, nil
	}

	s.out.Heading("Generated Query:")
	s.out.Query(0, q)
	s.execute(ctx, q)
	return StateStore, nil
}

func (s *Session) execute(ctx context.Context, q catalog.Query) {
	stop := s.out.Spin("Running query")
	res, err := s.conn.Execute(ctx, q, s.cfg.Connection.MaxRows)
	stop()
	if err != nil {
		s.report(err)
		return
	}
	s.out.Result(res)
}
