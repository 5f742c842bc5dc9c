package resolver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tabd/annotate/internal/provenance"
)

type gitRef struct {
	Object struct {
		URL string `json:"url"`
	} `json:"object"`
}

type gitCommit struct {
	Tree struct {
		URL string `json:"url"`
	} `json:"tree"`
}

type gitTree struct {
	Tree []struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	} `json:"tree"`
}

type gitBlob struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// NotesRef is the notes ref the editor integration pushes for one file at
// one head branch.
func NotesRef(head, hash string) string {
	return fmt.Sprintf("notes/tabd__%s__%s", head, hash)
}

// fromNotes follows ref -> commit -> tree -> blob for the notes ref of hash.
func (r *Resolver) fromNotes(ctx context.Context, hash string) (*provenance.ChangeLog, error) {
	var ref gitRef
	if err := r.fetchInto(ctx, r.repoURL()+"/git/ref/"+NotesRef(r.id.Head, hash), &ref); err != nil {
		return nil, fmt.Errorf("notes ref: %w", err)
	}
	if ref.Object.URL == "" {
		return nil, fmt.Errorf("%w: notes ref has no object url", provenance.ErrMalformedData)
	}

	var commit gitCommit
	if err := r.fetchInto(ctx, ref.Object.URL, &commit); err != nil {
		return nil, fmt.Errorf("notes commit: %w", err)
	}
	if commit.Tree.URL == "" {
		return nil, fmt.Errorf("%w: notes commit has no tree url", provenance.ErrMalformedData)
	}

	var tree gitTree
	if err := r.fetchInto(ctx, commit.Tree.URL, &tree); err != nil {
		return nil, fmt.Errorf("notes tree: %w", err)
	}
	if len(tree.Tree) == 0 || tree.Tree[0].URL == "" {
		return nil, fmt.Errorf("%w: notes tree is empty", provenance.ErrMalformedData)
	}

	var blob gitBlob
	if err := r.fetchInto(ctx, tree.Tree[0].URL, &blob); err != nil {
		return nil, fmt.Errorf("notes blob: %w", err)
	}

	// Note blobs are always base64 regardless of the encoding field.
	data, err := decodeBase64(blob.Content)
	if err != nil {
		return nil, err
	}
	return provenance.ParseChangeLog(data)
}

// decodeBase64 decodes API file content, which is wrapped at 60 columns.
func decodeBase64(content string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, content)

	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 content: %v", provenance.ErrMalformedData, err)
	}
	return data, nil
}

// decodeContent returns the bytes of a contents API payload.
func decodeContent(content, encoding string) ([]byte, error) {
	if encoding == "base64" {
		return decodeBase64(content)
	}
	return []byte(content), nil
}

// parseObject decodes data as a JSON object for merging.
func parseObject(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: log fragment is not a JSON object: %v", provenance.ErrMalformedData, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: log fragment is null", provenance.ErrMalformedData)
	}
	return doc, nil
}
