package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/he1237596/feed-service/internal/models"
	"github.com/he1237596/feed-service/internal/regerr"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"my-pilet", "my-pilet", true},
		{"My-Pilet", "my-pilet", true},
		{"  spaced  ", "spaced", true},
		{"@scope/name", "@scope/name", true},
		{"@Scope/Name", "@scope/name", true},
		{"", "", false},
		{"has space", "", false},
		{"../escape", "", false},
		{"@/empty-scope", "", false},
		{"-leading-dash", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeName(tc.in)
		if tc.ok {
			require.NoError(t, err, "normalize %q", tc.in)
			require.Equal(t, tc.want, got)
		} else {
			require.Error(t, err, "normalize %q should fail", tc.in)
			require.True(t, regerr.IsKind(err, regerr.KindValidation))
		}
	}
}

func TestCreatePackage_DuplicateNameConflicts(t *testing.T) {
	s, _ := testStore(t)
	owner := testUser(t, s)
	testPackage(t, s, owner, "alpha")

	err := s.CreatePackage(&models.Package{Name: "alpha", CreatedBy: owner, Public: true})
	require.True(t, regerr.IsKind(err, regerr.KindConflict))
}

func TestListVisible(t *testing.T) {
	s, _ := testStore(t)
	owner := testUser(t, s)
	testPackage(t, s, owner, "public-one")
	priv := &models.Package{Name: "private-one", CreatedBy: owner, Public: false}
	require.NoError(t, s.CreatePackage(priv))

	names := func(pkgs []models.Package) []string {
		out := make([]string, 0, len(pkgs))
		for _, p := range pkgs {
			out = append(out, p.Name)
		}
		return out
	}

	anon, err := s.ListVisible(0, false)
	require.NoError(t, err)
	require.Equal(t, []string{"public-one"}, names(anon), "anonymous viewers see public only")

	own, err := s.ListVisible(owner, false)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"public-one", "private-one"}, names(own), "owners see their private packages")

	admin, err := s.ListVisible(0, true)
	require.NoError(t, err)
	require.Len(t, admin, 2)
}

func TestDeletePackage_CascadesAndRemovesArtifacts(t *testing.T) {
	s, fr := testStore(t)
	pkg := testPackage(t, s, testUser(t, s), "alpha")
	v1 := addVersion(t, s, pkg.ID, "1.0.0")
	addVersion(t, s, pkg.ID, "1.1.0")
	s.RecordDownload(v1.ID, pkg.ID, v1.Version, "127.0.0.1", "test")

	require.NoError(t, s.DeletePackage(pkg.ID))
	require.ElementsMatch(t, []string{"/art/1.0.0", "/art/1.1.0"}, fr.removed)

	_, err := s.GetPackageByID(pkg.ID)
	require.True(t, regerr.IsKind(err, regerr.KindNotFound))

	var versions, downloads int
	require.NoError(t, s.DB.Get(&versions, `SELECT COUNT(*) FROM versions WHERE package_id = ?`, pkg.ID))
	require.NoError(t, s.DB.Get(&downloads, `SELECT COUNT(*) FROM downloads WHERE package_id = ?`, pkg.ID))
	require.Zero(t, versions, "version rows cascade")
	require.Zero(t, downloads, "download rows cascade")
}

func TestUpdatePackage(t *testing.T) {
	s, _ := testStore(t)
	pkg := testPackage(t, s, testUser(t, s), "alpha")

	desc := "a microfrontend"
	public := false
	require.NoError(t, s.UpdatePackage(pkg.ID, &desc, &public))

	got, err := s.GetPackageByID(pkg.ID)
	require.NoError(t, err)
	require.Equal(t, desc, got.Description)
	require.False(t, got.Public)
}
