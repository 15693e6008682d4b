package result

import "testing"

func TestConstructors(t *testing.T) {
	t.Parallel()

	if r := OK(); r.Failed() || r.IsHard() || r.Transient {
		t.Fatalf("OK() misclassified: %#v", r)
	}
	if r := Soft("flaky lint"); !r.Failed() || r.IsHard() || r.Message != "flaky lint" {
		t.Fatalf("Soft() misclassified: %#v", r)
	}
	if r := Hard("no SDK"); !r.IsHard() || r.Transient {
		t.Fatalf("Hard() misclassified: %#v", r)
	}
	if r := TransientHard("timeout"); !r.IsHard() || !r.Transient {
		t.Fatalf("TransientHard() misclassified: %#v", r)
	}
}

func TestWithKind(t *testing.T) {
	t.Parallel()

	r := Hard("gradle not found").WithKind("missing_tool")
	if r.Kind != "missing_tool" {
		t.Fatalf("kind not set: %#v", r)
	}
	if !r.IsHard() {
		t.Fatalf("WithKind must not alter the code: %#v", r)
	}
}

func TestCodeString(t *testing.T) {
	t.Parallel()

	cases := map[Code]string{
		Success:     "success",
		SoftFailure: "soft_failure",
		HardFailure: "hard_failure",
		Code(99):    "unknown",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("Code(%d).String() = %q, want %q", code, got, want)
		}
	}
}
