//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripqa/tripqa/pkg/api"
	"github.com/tripqa/tripqa/pkg/fixture"
	"github.com/tripqa/tripqa/pkg/wait"
)

func newAPIClient(t *testing.T) (*api.Client, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return api.New(cfg.APIBaseURL, api.WithRetry(wait.RetryConfig{
		Count: cfg.APIRetryCount,
		Delay: time.Duration(cfg.APIRetryDelayMs) * time.Millisecond,
		Log:   t.Logf,
	})), ctx
}

func getList[T any](t *testing.T, endpoint string) []T {
	t.Helper()
	c, ctx := newAPIClient(t)
	resp, err := c.Get(ctx, endpoint)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	var items []T
	require.NoError(t, resp.Decode(&items))
	return items
}

func TestAPI_Users(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		users := getList[api.User](t, "/users")
		require.NotEmpty(t, users)
		assert.NotZero(t, users[0].ID)
		assert.NotEmpty(t, users[0].Name)
		assert.True(t, fixture.IsValidEmail(users[0].Email))
	})

	t.Run("get by id", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		resp, err := c.Get(ctx, "/users/1")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
		var u api.User
		require.NoError(t, resp.Decode(&u))
		assert.Equal(t, 1, u.ID)
		assert.NotEmpty(t, u.Username)
	})

	t.Run("create", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		u := fixture.NewUser()
		created, err := c.CreateUser(ctx, u)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, u.Email, created.Email)
	})

	t.Run("update", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		resp, err := c.Put(ctx, "/users/1", map[string]any{"name": "Updated Name", "email": "updated@example.com"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
		var u api.User
		require.NoError(t, resp.Decode(&u))
		assert.Equal(t, 1, u.ID)
		assert.Equal(t, "Updated Name", u.Name)
	})

	t.Run("patch", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		resp, err := c.Patch(ctx, "/users/1", map[string]any{"website": "tripqa.example.com"})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.Status)
	})

	t.Run("delete", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		require.NoError(t, c.DeleteUser(ctx, 1))
	})
}

func TestAPI_Posts(t *testing.T) {
	posts := getList[api.Post](t, "/posts")
	require.NotEmpty(t, posts)
	assert.NotEmpty(t, posts[0].Title)
	assert.NotZero(t, posts[0].UserID)

	t.Run("by user", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		posts, err := c.Posts(ctx, 1)
		require.NoError(t, err)
		require.NotEmpty(t, posts)
		for _, p := range posts {
			assert.Equal(t, 1, p.UserID)
		}
	})

	t.Run("create", func(t *testing.T) {
		c, ctx := newAPIClient(t)
		resp, err := c.Post(ctx, "/posts", api.Post{UserID: 1, Title: "Test Post Title", Body: "body"})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.Status)
		var p api.Post
		require.NoError(t, resp.Decode(&p))
		assert.NotZero(t, p.ID)
		assert.Equal(t, "Test Post Title", p.Title)
		assert.Equal(t, 1, p.UserID)
	})
}

func TestAPI_Comments(t *testing.T) {
	comments := getList[api.Comment](t, "/posts/1/comments")
	require.NotEmpty(t, comments)
	for _, c := range comments {
		assert.Equal(t, 1, c.PostID)
	}

	c, ctx := newAPIClient(t)
	resp, err := c.Post(ctx, "/posts/1/comments", api.Comment{PostID: 1, Name: "Test Comment", Email: fixture.RandomEmail(), Body: "nice"})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.Status)
	var created api.Comment
	require.NoError(t, resp.Decode(&created))
	assert.Equal(t, "Test Comment", created.Name)
}

func TestAPI_Todos(t *testing.T) {
	todos := getList[api.Todo](t, "/users/1/todos")
	require.NotEmpty(t, todos)
	for _, td := range todos {
		assert.Equal(t, 1, td.UserID)
	}
}

func TestAPI_Albums(t *testing.T) {
	c, ctx := newAPIClient(t)
	albums, err := c.Albums(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, albums)
	assert.Positive(t, albums[0].ID)
	assert.Positive(t, albums[0].UserID)
	assert.NotEmpty(t, albums[0].Title)
}

func TestAPI_Photos(t *testing.T) {
	c, ctx := newAPIClient(t)
	photos, err := c.Photos(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, photos)
	for _, p := range photos[:min(5, len(photos))] {
		assert.Equal(t, 1, p.AlbumID)
		assert.NotEmpty(t, p.Title)
		assert.True(t, fixture.IsValidURL(p.URL), p.URL)
		assert.True(t, fixture.IsValidURL(p.ThumbnailURL), p.ThumbnailURL)
	}
}

func TestAPI_Errors(t *testing.T) {
	c, ctx := newAPIClient(t)
	for _, endpoint := range []string{"/users/999", "/invalid-endpoint"} {
		resp, err := c.Get(ctx, endpoint)
		require.NoError(t, err, endpoint)
		assert.Equal(t, http.StatusNotFound, resp.Status, endpoint)
	}
}

func TestAPI_Ping(t *testing.T) {
	c, ctx := newAPIClient(t)
	require.NoError(t, wait.Until(ctx, c.Ping, 20*time.Second, time.Second))
}
