package drive

import (
	"errors"
	"testing"
)

func TestResultExactlyOneSide(t *testing.T) {
	ok := Success([]FileRecord{{ID: "a"}})
	if !ok.OK() || ok.Reason() != nil || len(ok.Payload()) != 1 {
		t.Errorf("success result: ok=%v reason=%v payload=%v", ok.OK(), ok.Reason(), ok.Payload())
	}

	boom := errors.New("boom")
	failed := Failure[[]FileRecord](boom)
	if failed.OK() || !errors.Is(failed.Reason(), boom) || failed.Payload() != nil {
		t.Errorf("failure result: ok=%v reason=%v payload=%v", failed.OK(), failed.Reason(), failed.Payload())
	}
	if failed.Kind() != KindFailure {
		t.Errorf("kind = %v, want failure", failed.Kind())
	}
}

func TestFailureWithoutReasonStillFails(t *testing.T) {
	r := Failure[string](nil)
	if r.OK() {
		t.Fatal("expected failure")
	}
	if r.Reason() == nil {
		t.Fatal("failure must carry a reason")
	}
}

func TestZeroResultIsNotSuccess(t *testing.T) {
	var r Result[int]
	if r.OK() {
		t.Fatal("zero result must not report success")
	}
	if _, err := r.Unwrap(); err == nil {
		t.Fatal("zero result must unwrap to an error")
	}
}

func TestIsFolder(t *testing.T) {
	if !(FileRecord{MimeType: FolderMimeType}).IsFolder() {
		t.Error("folder mime type not detected")
	}
	if (FileRecord{MimeType: "application/pdf"}).IsFolder() {
		t.Error("pdf reported as folder")
	}
}
