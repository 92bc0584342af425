package models

import "testing"

func TestPresentationConfigNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     PresentationConfig
		detail string
		slides int
		scope  string
	}{
		{"empty", PresentationConfig{}, DetailIntermediate, 10, ScopeWholeDocument},
		{"unknown detail", PresentationConfig{DetailLevel: "detailed", NumSlides: 6}, DetailIntermediate, 6, ScopeWholeDocument},
		{"kept", PresentationConfig{DetailLevel: DetailBeginner, NumSlides: 4, Scope: ScopeSpecificTopics}, DetailBeginner, 4, ScopeSpecificTopics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.Normalize()
			if c.DetailLevel != tt.detail || c.NumSlides != tt.slides || c.Scope != tt.scope {
				t.Errorf("Normalize() = %+v", c)
			}
		})
	}
}

func TestDefaultCategories(t *testing.T) {
	if len(DefaultCategories) != 9 {
		t.Fatalf("expected 9 categories, got %d", len(DefaultCategories))
	}
	seen := map[int]bool{}
	for _, c := range DefaultCategories {
		if seen[c.ID] {
			t.Errorf("duplicate category id %d", c.ID)
		}
		seen[c.ID] = true
	}
	if !ValidCategory(GeneralCategoryID) || ValidCategory(42) {
		t.Error("ValidCategory mismatch")
	}
}
