package pointer

import (
	"context"

	"github.com/igorrazvodovsky/pattern-playground-sub002/internal/apperr"
)

// SectionView exposes the sections of item views.
type SectionView interface {
	SectionContent(documentID, sectionID string) (string, bool)
	MarkSection(documentID, sectionID, threadID string) error
	UnmarkSection(documentID, sectionID string) error
	FocusSection(documentID, sectionID string) error
}

type ItemSectionAdapter struct {
	view SectionView
}

func NewItemSectionAdapter(view SectionView) *ItemSectionAdapter {
	return &ItemSectionAdapter{view: view}
}

func (a *ItemSectionAdapter) Type() Type { return TypeItemSection }

func (a *ItemSectionAdapter) ValidatePointer(_ context.Context, p Pointer) bool {
	section, ok := p.(ItemSection)
	if !ok || section.Validate() != nil {
		return false
	}
	_, ok = a.view.SectionContent(section.Document, section.SectionID)
	return ok
}

func (a *ItemSectionAdapter) SerializePointer(p Pointer) (Record, error) {
	if _, ok := p.(ItemSection); !ok {
		return nil, mismatch("SerializePointer", TypeItemSection, p)
	}
	return Marshal(p)
}

func (a *ItemSectionAdapter) DeserializePointer(record Record) (Pointer, error) {
	p, err := Unmarshal(record)
	if err != nil {
		return nil, err
	}
	if p.Type() != TypeItemSection {
		return nil, mismatch("DeserializePointer", TypeItemSection, p)
	}
	return p, nil
}

func (a *ItemSectionAdapter) HighlightPointer(ctx context.Context, p Pointer, threadID string) error {
	section, err := a.section(ctx, p, "HighlightPointer")
	if err != nil {
		return err
	}
	return a.view.MarkSection(section.Document, section.SectionID, threadID)
}

func (a *ItemSectionAdapter) UnhighlightPointer(ctx context.Context, p Pointer) error {
	section, err := a.section(ctx, p, "UnhighlightPointer")
	if err != nil {
		return err
	}
	return a.view.UnmarkSection(section.Document, section.SectionID)
}

func (a *ItemSectionAdapter) FocusAtPointer(ctx context.Context, p Pointer) error {
	section, err := a.section(ctx, p, "FocusAtPointer")
	if err != nil {
		return err
	}
	return a.view.FocusSection(section.Document, section.SectionID)
}

func (a *ItemSectionAdapter) GetContentAtPointer(_ context.Context, p Pointer) (string, bool) {
	section, ok := p.(ItemSection)
	if !ok {
		return "", false
	}
	return a.view.SectionContent(section.Document, section.SectionID)
}

func (a *ItemSectionAdapter) section(ctx context.Context, p Pointer, op string) (ItemSection, error) {
	section, ok := p.(ItemSection)
	if !ok {
		return ItemSection{}, mismatch(op, TypeItemSection, p)
	}
	if !a.ValidatePointer(ctx, p) {
		return ItemSection{}, apperr.NotFound("pointer."+op, "section not found", map[string]any{
			"documentId": section.Document,
			"sectionId":  section.SectionID,
		})
	}
	return section, nil
}
