package agent

import (
	"context"

	"go.uber.org/zap"
)

// worker is a specialized agent: one instruction set, one artifact
// extractor, the shared run pipeline.
type worker struct {
	base
	extract func(map[string]any) *Artifacts
}

func (w *worker) Execute(ctx context.Context, task *Task) *Result {
	return w.run(ctx, task, w.extract)
}

func newWorker(typ WorkerType, system string, extract func(map[string]any) *Artifacts,
	backend Backend, opts Options, logger *zap.Logger) *worker {
	return &worker{
		base:    newBase(typ, string(typ)+"-agent", system, backend, opts, logger),
		extract: extract,
	}
}

const researchSystem = `You are a research agent. Investigate the task, compare options and gather facts.

Respond with a single JSON object, no prose around it:
{"summary":"what you found","findings":["..."],"sources":["..."]}`

const coderSystem = `You are a coding agent. Produce complete file contents, never fragments or diffs.

Respond with a single JSON object, no prose around it:
{"summary":"what you built","files":[{"path":"src/App.tsx","content":"full file content","type":"typescript"}]}`

const databaseSystem = `You are a database agent. Design the storage the task needs.

Respond with a single JSON object, no prose around it:
{"summary":"what you designed","schemas":[{"name":"users","definition":"CREATE TABLE users (...)"}]}`

const securitySystem = `You are a security agent. Audit the task context for weaknesses and how to close them.

Respond with a single JSON object, no prose around it:
{"summary":"audit result","vulnerabilities":["..."],"recommendations":["..."]}`

const reporterSystem = `You are a reporting agent. Turn the task context into clear documents.

Respond with a single JSON object, no prose around it:
{"summary":"what you wrote","docs":[{"title":"...","content":"..."}]}`

const browserSystem = `You are a browser automation agent. Plan the page visits and extract the data the task asks for.

Respond with a single JSON object, no prose around it:
{"summary":"what you did","actions":["..."],"data":{}}`

// NewResearchWorker builds the research variant. It produces no artifacts.
func NewResearchWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeResearch, researchSystem, nil, backend, opts, logger)
}

// NewCoderWorker builds the coder variant. File entries in the output
// become FileArtifacts.
func NewCoderWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeCoder, coderSystem, extractFiles, backend, opts, logger)
}

// NewDatabaseWorker builds the database variant. Schema entries in the
// output become SchemaArtifacts.
func NewDatabaseWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeDatabase, databaseSystem, extractSchemas, backend, opts, logger)
}

// NewSecurityWorker builds the security variant. It produces no artifacts.
func NewSecurityWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeSecurity, securitySystem, nil, backend, opts, logger)
}

// NewReporterWorker builds the reporter variant. Doc entries in the output
// become DocArtifacts.
func NewReporterWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeReporter, reporterSystem, extractDocs, backend, opts, logger)
}

// NewBrowserWorker builds the browser variant. It produces no artifacts.
func NewBrowserWorker(backend Backend, opts Options, logger *zap.Logger) Worker {
	return newWorker(TypeBrowser, browserSystem, nil, backend, opts, logger)
}

// extractFiles lifts the "files" list out of a decoded output. Entries
// that are not objects are dropped; missing fields stay empty.
func extractFiles(out map[string]any) *Artifacts {
	items, ok := out["files"].([]any)
	if !ok {
		return nil
	}
	arts := &Artifacts{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		arts.Files = append(arts.Files, FileArtifact{
			Path:    asString(m["path"]),
			Content: asString(m["content"]),
			Type:    asString(m["type"]),
		})
	}
	if len(arts.Files) == 0 {
		return nil
	}
	return arts
}

// extractSchemas lifts the "schemas" list out of a decoded output.
func extractSchemas(out map[string]any) *Artifacts {
	items, ok := out["schemas"].([]any)
	if !ok {
		return nil
	}
	arts := &Artifacts{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		arts.Schemas = append(arts.Schemas, SchemaArtifact{
			Name:       asString(m["name"]),
			Definition: asString(m["definition"]),
		})
	}
	if len(arts.Schemas) == 0 {
		return nil
	}
	return arts
}

// extractDocs lifts the "docs" list out of a decoded output.
func extractDocs(out map[string]any) *Artifacts {
	items, ok := out["docs"].([]any)
	if !ok {
		return nil
	}
	arts := &Artifacts{}
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		arts.Docs = append(arts.Docs, DocArtifact{
			Title:   asString(m["title"]),
			Content: asString(m["content"]),
		})
	}
	if len(arts.Docs) == 0 {
		return nil
	}
	return arts
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
