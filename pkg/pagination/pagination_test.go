package pagination

import "testing"

func TestParamsNormalize(t *testing.T) {
	cases := []struct {
		in   Params
		want Params
	}{
		{Params{}, Params{Page: 1, Size: DefaultLimit}},
		{Params{Page: -3, Size: 10}, Params{Page: 1, Size: 10}},
		{Params{Page: 4, Size: 1000}, Params{Page: 4, Size: MaxLimit}},
	}
	for _, tc := range cases {
		if got := tc.in.Normalize(); got != tc.want {
			t.Errorf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParamsOffset(t *testing.T) {
	if got := (Params{Page: 3, Size: 10}).Offset(); got != 20 {
		t.Fatalf("expected offset 20, got %d", got)
	}
	if got := (Params{}).Offset(); got != 0 {
		t.Fatalf("expected offset 0, got %d", got)
	}
}

func TestNewPageTrimsBufferRow(t *testing.T) {
	rows := []int{1, 2, 3}
	page := NewPage(Params{Page: 1, Size: 2}, rows, 5)
	if !page.HasNext {
		t.Fatal("expected has_next with buffered row")
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	last := NewPage(Params{Page: 3, Size: 2}, []int{5}, 5)
	if last.HasNext {
		t.Fatal("last page should not report has_next")
	}

	empty := NewPage[int](Params{Page: 9}, nil, 0)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", empty.Items)
	}
}
