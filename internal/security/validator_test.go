package security

import "testing"

func newTestValidator() *Validator {
	return New([]string{"youtube.com", "youtu.be"}, 2048, 500*1024*1024)
}

func TestValidateURL_RejectsNonHTTPS(t *testing.T) {
	v := newTestValidator()
	if _, err := v.ValidateURL("http://youtube.com/watch?v=abc"); err == nil {
		t.Error("expected error for non-https URL")
	}
}

func TestValidateURL_RejectsDisallowedDomain(t *testing.T) {
	v := newTestValidator()
	if _, err := v.ValidateURL("https://evil.example.com/video"); err == nil {
		t.Error("expected error for disallowed domain")
	}
}

func TestValidateURL_AllowsSubdomain(t *testing.T) {
	v := newTestValidator()
	if _, err := v.ValidateURL("https://www.youtube.com/watch?v=abc"); err != nil {
		t.Errorf("expected subdomain to be allowed, got %v", err)
	}
}

func TestValidateURL_RejectsLoopbackHost(t *testing.T) {
	v := New([]string{"127.0.0.1"}, 2048, 500*1024*1024)
	if _, err := v.ValidateURL("https://127.0.0.1/video"); err == nil {
		t.Error("expected error for loopback IP host")
	}
}

func TestValidateURL_RejectsPrivateIP(t *testing.T) {
	v := New([]string{"10.0.0.5"}, 2048, 500*1024*1024)
	if _, err := v.ValidateURL("https://10.0.0.5/video"); err == nil {
		t.Error("expected error for private IP host")
	}
}

func TestValidateURL_RejectsLocalDomain(t *testing.T) {
	v := New([]string{"my-box.local"}, 2048, 500*1024*1024)
	if _, err := v.ValidateURL("https://my-box.local/video"); err == nil {
		t.Error("expected error for .local domain")
	}
}

func TestValidateURL_RejectsTooLong(t *testing.T) {
	v := New([]string{"youtube.com"}, 10, 500*1024*1024)
	if _, err := v.ValidateURL("https://youtube.com/watch?v=abcdefghijklmnop"); err == nil {
		t.Error("expected error for too-long URL")
	}
}

func TestValidateJobID_RejectsTraversal(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateJobID("../etc/passwd"); err == nil {
		t.Error("expected error for path traversal job id")
	}
}

func TestValidateJobID_AcceptsSafeID(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateJobID("job-123_abc"); err != nil {
		t.Errorf("expected safe id to validate, got %v", err)
	}
}

func TestValidateInput_RejectsNullByte(t *testing.T) {
	v := newTestValidator()
	if err := v.ValidateInput("abc\x00def", "field", 100); err == nil {
		t.Error("expected error for null byte")
	}
}

func TestSafeJobFilePath_RejectsBadFilename(t *testing.T) {
	v := newTestValidator()
	if _, err := v.SafeJobFilePath("/app/storage", "job-1", "../../etc/passwd"); err == nil {
		t.Error("expected error for path traversal filename")
	}
}

func TestSafeJobFilePath_BuildsExpectedName(t *testing.T) {
	v := newTestValidator()
	p, err := v.SafeJobFilePath("/app/storage", "job-1", "video.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "/app/storage/job-1_video.mp4"
	if p != want {
		t.Errorf("got %q, want %q", p, want)
	}
}
