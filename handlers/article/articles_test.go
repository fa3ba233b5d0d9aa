package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sahilchouksey/uniportal-api/database/dbtest"
	"github.com/sahilchouksey/uniportal-api/model"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Admission Guide 2026":    "admission-guide-2026",
		"  --Study   abroad!!  ":  "study-abroad",
		"دليل القبول":             "دليل-القبول",
		"C++ & Go: a comparison.": "c-go-a-comparison",
		"!!!":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"fees", "scholarships"}, []string(splitTags(" Fees ,scholarships,, FEES")))
	assert.Empty(t, splitTags(""))
}

func TestUniqueSlugCountsDeletedArticles(t *testing.T) {
	db := dbtest.New(t)
	h := &ArticleHandler{db: db}

	first := model.Article{Title: "Guide", Slug: "guide", Body: "x"}
	require.NoError(t, db.Create(&first).Error)
	deleted := model.Article{Title: "Guide", Slug: "guide-2", Body: "x"}
	require.NoError(t, db.Create(&deleted).Error)
	require.NoError(t, db.Delete(&deleted).Error)

	slug, err := h.uniqueSlug(db, "guide", 0)
	require.NoError(t, err)
	assert.Equal(t, "guide-3", slug)

	slug, err = h.uniqueSlug(db, "guide", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "guide", slug, "an article keeps its own slug")

	slug, err = h.uniqueSlug(db, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "article", slug)
}
