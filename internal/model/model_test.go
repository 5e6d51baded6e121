package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestItemID(t *testing.T) {
	t.Run("Provisional ids carry the prefix", func(t *testing.T) {
		id := NewProvisionalID()
		if !id.IsProvisional() {
			t.Errorf("Expected %s to be provisional", id)
		}
		if !strings.HasPrefix(string(id), ProvisionalPrefix) {
			t.Errorf("Expected prefix %q, got %s", ProvisionalPrefix, id)
		}
	})

	t.Run("Durable ids are not provisional", func(t *testing.T) {
		id := NewDurableID()
		if id.IsProvisional() {
			t.Errorf("Expected %s to be durable", id)
		}
		if id == NewDurableID() {
			t.Error("Expected two durable ids to differ")
		}
	})
}

func TestItemJSON(t *testing.T) {
	t.Run("Fields are flattened next to id and order", func(t *testing.T) {
		it := Item[ServiceBlock]{ID: "a", Order: 3, Fields: ServiceBlock{Heading: "Loans", Body: "text"}}

		data, err := json.Marshal(it)
		if err != nil {
			t.Fatalf("Failed to marshal item: %v", err)
		}

		var obj map[string]any
		if err := json.Unmarshal(data, &obj); err != nil {
			t.Fatalf("Failed to decode item object: %v", err)
		}
		if obj["id"] != "a" {
			t.Errorf("Expected id 'a', got %v", obj["id"])
		}
		if obj["order"] != float64(3) {
			t.Errorf("Expected order 3, got %v", obj["order"])
		}
		if obj["heading"] != "Loans" {
			t.Errorf("Expected heading 'Loans', got %v", obj["heading"])
		}
	})

	t.Run("Decoding reads header and fields", func(t *testing.T) {
		var it Item[Rate]
		err := json.Unmarshal([]byte(`{"id":"r1","order":2,"product":"Auto","apr":7.5,"termMonths":36}`), &it)
		if err != nil {
			t.Fatalf("Failed to unmarshal item: %v", err)
		}
		if it.ID != "r1" || it.Order != 2 {
			t.Errorf("Unexpected header: %+v", it)
		}
		if it.Fields.Product != "Auto" || it.Fields.APR != 7.5 || it.Fields.TermMonths != 36 {
			t.Errorf("Unexpected fields: %+v", it.Fields)
		}
	})

	t.Run("Snapshot wire shape", func(t *testing.T) {
		snap := Snapshot[CTACard]{
			Items: Collection[CTACard]{{ID: "c", Order: 1, Fields: CTACard{Title: "Apply", Href: "/apply"}}},
		}
		data, err := json.Marshal(snap)
		if err != nil {
			t.Fatalf("Failed to marshal snapshot: %v", err)
		}
		if !strings.HasPrefix(string(data), `{"items":[`) {
			t.Errorf("Unexpected wire shape: %s", data)
		}
		if strings.Contains(string(data), "idMap") {
			t.Errorf("Expected empty idMap to be omitted: %s", data)
		}

		var back Snapshot[CTACard]
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Failed to unmarshal snapshot: %v", err)
		}
		if len(back.Items) != 1 || back.Items[0].Fields.Href != "/apply" {
			t.Errorf("Unexpected snapshot: %+v", back)
		}
	})
}

func TestCollection(t *testing.T) {
	c := Collection[ServiceBlock]{
		{ID: "c", Order: 3},
		{ID: "a", Order: 1},
		{ID: "b", Order: 2},
	}

	t.Run("Sorted orders by order without touching input", func(t *testing.T) {
		sorted := c.Sorted()
		got := []ItemID{sorted[0].ID, sorted[1].ID, sorted[2].ID}
		want := []ItemID{"a", "b", "c"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Expected %v, got %v", want, got)
			}
		}
		if c[0].ID != "c" {
			t.Error("Expected input to be left untouched")
		}
	})

	t.Run("Sorted breaks ties by id", func(t *testing.T) {
		tied := Collection[ServiceBlock]{{ID: "z", Order: 1}, {ID: "y", Order: 1}}
		sorted := tied.Sorted()
		if sorted[0].ID != "y" {
			t.Errorf("Expected 'y' first, got %s", sorted[0].ID)
		}
	})

	t.Run("Clone is independent", func(t *testing.T) {
		clone := c.Clone()
		clone[0].Order = 99
		if c[0].Order == 99 {
			t.Error("Expected clone to be independent of the original")
		}
	})

	t.Run("Clone of nil is empty, not nil", func(t *testing.T) {
		var empty Collection[ServiceBlock]
		if empty.Clone() == nil {
			t.Error("Expected non-nil clone")
		}
	})

	t.Run("Find and MaxOrder", func(t *testing.T) {
		if i, ok := c.Find("b"); !ok || i != 2 {
			t.Errorf("Expected to find 'b' at 2, got %d %v", i, ok)
		}
		if _, ok := c.Find("missing"); ok {
			t.Error("Expected missing id not to be found")
		}
		if c.MaxOrder() != 3 {
			t.Errorf("Expected max order 3, got %d", c.MaxOrder())
		}
	})
}

func TestValidateCollection(t *testing.T) {
	t.Run("Valid collection", func(t *testing.T) {
		c := Collection[TeamMember]{{ID: "a", Order: 1, Fields: TeamMember{Name: "Ana", Role: "CEO"}}}
		if err := ValidateCollection(c); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("Missing required field names the item", func(t *testing.T) {
		c := Collection[TeamMember]{{ID: "a", Order: 1, Fields: TeamMember{Name: "Ana"}}}
		err := ValidateCollection(c)

		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Expected ValidationError, got %v", err)
		}
		if ve.ItemID != "a" || ve.Field != "role" {
			t.Errorf("Unexpected validation error: %+v", ve)
		}
	})

	t.Run("Duplicate ids", func(t *testing.T) {
		c := Collection[ServiceBlock]{
			{ID: "a", Order: 1, Fields: ServiceBlock{Heading: "x"}},
			{ID: "a", Order: 2, Fields: ServiceBlock{Heading: "y"}},
		}
		if KindOf(ValidateCollection(c)) != KindValidation {
			t.Error("Expected duplicate ids to fail validation")
		}
	})

	t.Run("Rate rules", func(t *testing.T) {
		cases := []struct {
			rate  Rate
			field string
		}{
			{Rate{APR: 1, TermMonths: 12}, "product"},
			{Rate{Product: "Home", APR: -1, TermMonths: 12}, "apr"},
			{Rate{Product: "Home", APR: 1}, "termMonths"},
		}
		for _, tc := range cases {
			err := tc.rate.Validate()
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Errorf("Expected %s error for %+v, got %v", tc.field, tc.rate, err)
			}
		}
	})
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{&ValidationError{Field: "title"}, KindValidation},
		{&TransportError{Op: "save", Key: "rates", Err: errors.New("boom")}, KindTransport},
		{NewConflictError("rates"), KindConflict},
		{fmt.Errorf("load: %w", ErrNotFound), KindNotFound},
		{errors.New("other"), KindUnknown},
	}

	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	t.Run("Conflict exposes exactly two remedies", func(t *testing.T) {
		err := NewConflictError("team")
		if len(err.Remedies) != 2 || err.Remedies[0] != RemedyResetToLatest || err.Remedies[1] != RemedyForceOverwrite {
			t.Errorf("Unexpected remedies: %v", err.Remedies)
		}
	})

	t.Run("Transport errors unwrap", func(t *testing.T) {
		cause := errors.New("timeout")
		err := &TransportError{Op: "load", Key: "team", Err: cause}
		if !errors.Is(err, cause) {
			t.Error("Expected TransportError to unwrap to its cause")
		}
		if !err.Retryable() {
			t.Error("Expected TransportError to be retryable")
		}
	})
}
