package timeline

import "testing"

func TestClassifier_Classify(t *testing.T) {
	c := testClassifier()
	cases := []struct {
		label string
		want  Classification
	}{
		{"Marine", Classification{Accepted: true}},
		{"CommandCenter", Classification{Accepted: true, Stationary: true}},
		{"Hatchery", Classification{Accepted: true, Stationary: true}},
		{"MineralField", Classification{}},
		{"MineralField750", Classification{}},
		{"VespeneGeyser", Classification{}},
		{"DestructibleRockEx1DiagonalHugeBLUR", Classification{}},
		{"SomethingNew", Classification{Accepted: true}},
		{"", Classification{Accepted: true}},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.label); got != tc.want {
			t.Fatalf("Classify(%q)=%+v want %+v", tc.label, got, tc.want)
		}
	}
}

func TestClassifier_IgnoresBlankEntries(t *testing.T) {
	c := NewClassifier([]string{"", "  "}, []string{" Nexus "})
	if got := c.Classify("Zealot"); !got.Accepted {
		t.Fatalf("blank prefix must not reject everything")
	}
	if got := c.Classify("Nexus"); !got.Stationary {
		t.Fatalf("trimmed structure label not matched")
	}
}
