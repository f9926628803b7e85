package version

import "testing"

func TestShort(t *testing.T) {
	defer func(v, sha string) { Version, GitSHA = v, sha }(Version, GitSHA)

	Version, GitSHA = "1.4.0", "unknown"
	if got := Short(); got != "1.4.0" {
		t.Errorf("Short() = %q, want bare version when sha unknown", got)
	}

	GitSHA = "abc1234"
	if got := Short(); got != "1.4.0 (abc1234)" {
		t.Errorf("Short() = %q", got)
	}
}
