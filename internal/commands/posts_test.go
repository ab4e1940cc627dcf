package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
	"github.com/frontend-bootcamp/reqstate/internal/output"
)

func TestPostsList(t *testing.T) {
	app, buf := setupTestApp(t)

	require.NoError(t, executeCommand(NewPostsCmd(), app, "list", "--page", "2"))

	var posts []mockapi.Post
	resp := decodeResponse(t, buf, &posts)
	require.Len(t, posts, mockapi.PostsPerPage)
	assert.Equal(t, 6, posts[0].ID)
	assert.Equal(t, "Page 2 of 5", resp.Summary)
	assert.EqualValues(t, 2, resp.Meta["page"])

	var actions []string
	for _, b := range resp.Breadcrumbs {
		actions = append(actions, b.Action)
	}
	assert.Equal(t, []string{"next", "previous"}, actions)
}

func TestPostsListLastPage(t *testing.T) {
	app, buf := setupTestApp(t)

	require.NoError(t, executeCommand(NewPostsCmd(), app, "list", "--page", "5"))

	var posts []mockapi.Post
	resp := decodeResponse(t, buf, &posts)
	assert.Len(t, posts, 3)
	for _, b := range resp.Breadcrumbs {
		assert.NotEqual(t, "next", b.Action)
	}
}

func TestPostsListDefaultsToFirstPage(t *testing.T) {
	app, buf := setupTestApp(t)

	require.NoError(t, executeCommand(NewPostsCmd(), app))

	var posts []mockapi.Post
	resp := decodeResponse(t, buf, &posts)
	assert.Equal(t, 1, posts[0].ID)
	assert.Equal(t, "Page 1 of 5", resp.Summary)
}

func TestPostsListAll(t *testing.T) {
	app, buf := setupTestApp(t)

	require.NoError(t, executeCommand(NewPostsCmd(), app, "list", "--all"))

	var posts []mockapi.Post
	resp := decodeResponse(t, buf, &posts)
	require.Len(t, posts, mockapi.TotalPosts)
	for i, p := range posts {
		assert.Equal(t, i+1, p.ID)
	}
	assert.Equal(t, "23 posts across 5 pages", resp.Summary)
	assert.EqualValues(t, 5, resp.Meta["pages"])
}

func TestPostsListAllExcludesPage(t *testing.T) {
	app, _ := setupTestApp(t)

	err := executeCommand(NewPostsCmd(), app, "list", "--all", "--page", "2")
	assert.ErrorContains(t, err, "none of the others")
}

func TestPostsListInvalidPage(t *testing.T) {
	app, _ := setupTestApp(t)

	err := executeCommand(NewPostsCmd(), app, "list", "--page", "0")
	requireCode(t, err, output.CodeUsage)
}

func TestPostsShow(t *testing.T) {
	app, buf := setupTestApp(t)

	require.NoError(t, executeCommand(NewPostsCmd(), app, "show", "3"))

	var post mockapi.Post
	decodeResponse(t, buf, &post)
	assert.Equal(t, 3, post.ID)
}

func TestPostsShowNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	err := executeCommand(NewPostsCmd(), app, "show", "24")
	requireCode(t, err, output.CodeNotFound)
}

func TestWritePost(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer

	require.NoError(t, writePost(&buf, mockapi.Post{ID: 1, Title: "Hello", Body: "Some **bold** text."}))
	assert.Contains(t, buf.String(), "Hello")
	assert.Contains(t, buf.String(), "bold")
}
