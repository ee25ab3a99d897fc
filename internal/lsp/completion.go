package lsp

import (
	"fmt"
)

// getCompletions returns one item per catalog function. The position is not
// consulted; clients filter by the prefix already typed.
func (s *Server) getCompletions() []CompletionItem {
	if s.session == nil {
		return []CompletionItem{}
	}

	entries, err := s.session.Completions()
	if err != nil {
		s.logger.Warn("Completion unavailable", "error", err)
		return []CompletionItem{}
	}

	items := make([]CompletionItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, CompletionItem{
			Label:      e.Label,
			Kind:       CompletionItemKindFunction,
			Detail:     e.Detail,
			InsertText: e.InsertText,
			Documentation: &MarkupContent{
				Kind:  MarkupKindMarkdown,
				Value: e.Documentation,
			},
		})
	}
	return items
}

// getSignatureHelp resolves the call around the cursor on its line.
// It returns nil when there is nothing to show.
func (s *Server) getSignatureHelp(params SignatureHelpParams) *SignatureHelp {
	if s.session == nil {
		return nil
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	line, offset := doc.LineAt(params.Position)
	help, err := s.session.SignatureHelp(line, offset)
	if err != nil {
		s.logger.Warn("Signature help unavailable", "error", err)
		return nil
	}
	if help == nil {
		return nil
	}

	if params.Context != nil {
		s.logger.Debug("Signature help",
			"kind", params.Context.TriggerKind,
			"trigger", params.Context.TriggerCharacter,
			"retrigger", params.Context.IsRetrigger,
			"signature", help.ActiveSignature,
			"parameter", help.ActiveParameter)
	}

	sigs := make([]SignatureInformation, 0, len(help.Signatures))
	for _, sig := range help.Signatures {
		parameters := make([]ParameterInformation, 0, len(sig.Parameters))
		for _, p := range sig.Parameters {
			parameters = append(parameters, ParameterInformation{Label: p})
		}
		sigs = append(sigs, SignatureInformation{
			Label:         sig.Label,
			Documentation: sig.Documentation,
			Parameters:    parameters,
		})
	}

	return &SignatureHelp{
		Signatures:      sigs,
		ActiveSignature: uint32(help.ActiveSignature), //nolint:gosec // G115: catalog index is non-negative
		ActiveParameter: uint32(help.ActiveParameter), //nolint:gosec // G115: comma count is non-negative
	}
}

// getHover describes the catalog function under the cursor.
func (s *Server) getHover(params HoverParams) *Hover {
	if s.session == nil {
		return nil
	}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	word, rng := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}

	fn, ok := s.session.Describe(word)
	if !ok {
		return nil
	}

	content := fmt.Sprintf("```nvgt\n%s\n```", fn.Signature())
	if fn.Description != "" {
		content += "\n\n" + fn.Description
	}

	return &Hover{
		Contents: MarkupContent{
			Kind:  MarkupKindMarkdown,
			Value: content,
		},
		Range: &rng,
	}
}
