// Package runtime holds helpers shared by the onboarding step modules:
// context validation and artifact readiness checks with metadata repair.
package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
)

// MetadataOption customizes the metadata written for an artifact.
type MetadataOption func(*artifact.Metadata)

// WithInputs records the upstream artifact identifiers in metadata.
func WithInputs(refs ...artifact.ArtifactRef) MetadataOption {
	return func(meta *artifact.Metadata) {
		if len(refs) == 0 {
			return
		}
		ids := make([]string, 0, len(refs))
		for _, ref := range refs {
			if ref.ID != "" {
				ids = append(ids, ref.ID)
			}
		}
		if len(ids) > 0 {
			meta.Inputs = ids
		}
	}
}

// WithNote records an arbitrary metadata note.
func WithNote(key, value string) MetadataOption {
	return func(meta *artifact.Metadata) {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			return
		}
		if meta.Notes == nil {
			meta.Notes = map[string]string{}
		}
		meta.Notes[key] = value
	}
}

// ValidateContext ensures modules receive a usable context.
func ValidateContext(moduleID string, ctx *module.ModuleContext) error {
	if ctx == nil {
		return fmt.Errorf("%s: context is nil", moduleID)
	}
	if ctx.Config == nil {
		return fmt.Errorf("%s: config is required", moduleID)
	}
	if ctx.Run == nil {
		return fmt.Errorf("%s: run is required", moduleID)
	}
	if ctx.Employee == nil {
		return fmt.Errorf("%s: employee is required", moduleID)
	}
	if ctx.Artifacts == nil {
		return fmt.Errorf("%s: artifact store is required", moduleID)
	}
	return nil
}

// EnsureDocument checks the artifact and rewrites it with run metadata if needed.
func EnsureDocument(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef, opts ...MetadataOption) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil {
		return false, fmt.Errorf("%s: check %s: %w", moduleID, ref.ID, err)
	}
	switch result.State {
	case artifact.StateReady:
		if result.Metadata == nil || result.Metadata.ModuleID != moduleID || result.Metadata.Version != version {
			if err := rewriteDocument(ctx, moduleID, version, ref, opts...); err != nil {
				return false, err
			}
			return false, nil
		}
		return true, nil
	case artifact.StateMissing:
		return false, nil
	case artifact.StateInvalid:
		if err := rewriteDocument(ctx, moduleID, version, ref, opts...); err != nil {
			return false, err
		}
		return false, nil
	case artifact.StateError:
		if result.Err != nil {
			return false, fmt.Errorf("%s: %s: %w", moduleID, ref.ID, result.Err)
		}
		return false, fmt.Errorf("%s: %s encountered an unknown error", moduleID, ref.ID)
	default:
		return false, nil
	}
}

// EnsureJSON validates a JSON artifact's readiness and provenance.
func EnsureJSON(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil {
		return false, fmt.Errorf("%s: check %s: %w", moduleID, ref.ID, err)
	}
	switch result.State {
	case artifact.StateReady:
		if result.Metadata == nil || result.Metadata.ModuleID != moduleID || result.Metadata.Version != version {
			return false, nil
		}
		return true, nil
	case artifact.StateMissing, artifact.StateInvalid:
		return false, nil
	case artifact.StateError:
		if result.Err != nil {
			return false, fmt.Errorf("%s: %s: %w", moduleID, ref.ID, result.Err)
		}
		return false, fmt.Errorf("%s: %s encountered an unknown error", moduleID, ref.ID)
	default:
		return false, nil
	}
}

// EnsureMarker validates marker artifacts.
func EnsureMarker(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef) (bool, error) {
	result, err := ctx.Artifacts.Check(ref)
	if err != nil {
		return false, fmt.Errorf("%s: check %s: %w", moduleID, ref.ID, err)
	}
	switch result.State {
	case artifact.StateReady:
		return true, nil
	case artifact.StateMissing:
		return false, nil
	case artifact.StateInvalid:
		if err := ctx.Artifacts.Write(ref, nil, artifact.Metadata{ArtifactID: ref.ID, ModuleID: moduleID, Version: version, Run: ctx.Run.ID()}); err != nil {
			return false, fmt.Errorf("%s: rewrite %s: %w", moduleID, ref.ID, err)
		}
		return false, nil
	case artifact.StateError:
		if result.Err != nil {
			return false, fmt.Errorf("%s: %s: %w", moduleID, ref.ID, result.Err)
		}
		return false, fmt.Errorf("%s: %s encountered an unknown error", moduleID, ref.ID)
	default:
		return false, nil
	}
}

func rewriteDocument(ctx *module.ModuleContext, moduleID, version string, ref artifact.ArtifactRef, opts ...MetadataOption) error {
	path := ref.Path(ctx.Run)
	if path == "" {
		return fmt.Errorf("%s: unable to resolve path for %s", moduleID, ref.ID)
	}
	body, err := readDocumentBody(path)
	if err != nil {
		return fmt.Errorf("%s: read %s: %w", moduleID, ref.ID, err)
	}
	meta := artifact.Metadata{
		ArtifactID: ref.ID,
		ModuleID:   moduleID,
		Version:    version,
		Run:        ctx.Run.ID(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&meta)
		}
	}
	if err := ctx.Artifacts.Write(ref, body, meta); err != nil {
		return fmt.Errorf("%s: write %s: %w", moduleID, ref.ID, err)
	}
	return nil
}

func readDocumentBody(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	if _, body, err := artifact.ParseFrontMatter(data); err == nil {
		return body, nil
	}
	return data, nil
}
