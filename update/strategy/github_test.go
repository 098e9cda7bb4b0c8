package strategy

import "testing"

func TestOwnerRepoFromFetchURL(t *testing.T) {
	cases := []struct {
		url        string
		wantOwner  string
		wantRepo   string
		wantFound  bool
	}{
		{"https://github.com/acme/widget/releases/download/v1.2.3/widget.tar.gz", "acme", "widget", true},
		{"https://objects.example.com/widget.tar.gz", "", "", false},
	}
	for _, c := range cases {
		owner, repo, ok := ownerRepoFromFetchURL(c.url)
		if ok != c.wantFound || owner != c.wantOwner || repo != c.wantRepo {
			t.Errorf("ownerRepoFromFetchURL(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.url, owner, repo, ok, c.wantOwner, c.wantRepo, c.wantFound)
		}
	}
}
