package selfcert

import "testing"

func TestIssueLeafVerifiesAgainstItsCA(t *testing.T) {
	ca, err := NewCA("test-ca")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	leaf, err := ca.IssueLeaf("server", "127.0.0.1", "localhost")
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}
	if err := leaf.VerifySignedBy(ca); err != nil {
		t.Fatalf("leaf should verify against its own CA: %v", err)
	}
}

func TestIssueLeafRejectsForeignCA(t *testing.T) {
	ca1, err := NewCA("ca-1")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	ca2, err := NewCA("ca-2")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	leaf, err := ca1.IssueLeaf("server", "127.0.0.1")
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}
	if err := leaf.VerifySignedBy(ca2); err == nil {
		t.Fatalf("leaf signed by ca1 must not verify against ca2")
	}
}

func TestServerAndClientConfigsBuild(t *testing.T) {
	ca, err := NewCA("test-ca")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	serverLeaf, err := ca.IssueLeaf("server", "127.0.0.1", "localhost")
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}
	if _, err := ServerConfig(serverLeaf, ca, false); err != nil {
		t.Fatalf("ServerConfig: %v", err)
	}
	if _, err := ClientConfig(ca, nil, "localhost"); err != nil {
		t.Fatalf("ClientConfig: %v", err)
	}
}

func TestIssueLeafRequiresAtLeastOneHost(t *testing.T) {
	ca, err := NewCA("test-ca")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if _, err := ca.IssueLeaf("server"); err == nil {
		t.Fatalf("expected error issuing a leaf cert with no hosts")
	}
}
