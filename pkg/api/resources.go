package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tripqa/tripqa/pkg/fixture"
)

// User is a JSONPlaceholder user.
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website,omitempty"`
}

// Post is a JSONPlaceholder post.
type Post struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Comment is a JSONPlaceholder comment.
type Comment struct {
	ID     int    `json:"id"`
	PostID int    `json:"postId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Body   string `json:"body"`
}

// Todo is a JSONPlaceholder todo item.
type Todo struct {
	ID        int    `json:"id"`
	UserID    int    `json:"userId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Album is a JSONPlaceholder photo album.
type Album struct {
	ID     int    `json:"id"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
}

// Photo is a JSONPlaceholder photo of an album.
type Photo struct {
	ID           int    `json:"id"`
	AlbumID      int    `json:"albumId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Method   string
	Endpoint string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Endpoint, e.Status)
}

func expect(resp *Response, method, endpoint string, statuses ...int) error {
	for _, s := range statuses {
		if resp.Status == s {
			return nil
		}
	}
	return &StatusError{Method: method, Endpoint: endpoint, Status: resp.Status}
}

// Ping checks the API answers the users listing with 200.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	resp, err := c.Get(ctx, "/users?_limit=1")
	if err != nil {
		return false, err
	}
	return resp.Status == http.StatusOK, nil
}

// list gets endpoint and decodes the json array it answers with.
func list[T any](ctx context.Context, c *Client, endpoint string) ([]T, error) {
	resp, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if err := expect(resp, http.MethodGet, endpoint, http.StatusOK); err != nil {
		return nil, err
	}
	var items []T
	if err := resp.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// Users lists all users.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	return list[User](ctx, c, "/users")
}

// Posts lists posts of a user, all posts if userID is 0.
func (c *Client) Posts(ctx context.Context, userID int) ([]Post, error) {
	endpoint := "/posts"
	if userID > 0 {
		endpoint = fmt.Sprintf("/posts?userId=%d", userID)
	}
	return list[Post](ctx, c, endpoint)
}

// Albums lists all albums.
func (c *Client) Albums(ctx context.Context) ([]Album, error) {
	return list[Album](ctx, c, "/albums")
}

// Photos lists photos of an album.
func (c *Client) Photos(ctx context.Context, albumID int) ([]Photo, error) {
	return list[Photo](ctx, c, fmt.Sprintf("/albums/%d/photos", albumID))
}

// CreateUser posts a generated user and returns it with the id assigned by the API.
func (c *Client) CreateUser(ctx context.Context, u fixture.User) (fixture.User, error) {
	resp, err := c.Post(ctx, "/users", u)
	if err != nil {
		return u, err
	}
	if err := expect(resp, http.MethodPost, "/users", http.StatusCreated, http.StatusOK); err != nil {
		return u, err
	}
	var created struct {
		ID int `json:"id"`
	}
	if err := resp.Decode(&created); err != nil {
		return u, err
	}
	u.ID = created.ID
	return u, nil
}

// DeleteUser removes a user by id.
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	endpoint := fmt.Sprintf("/users/%d", id)
	resp, err := c.Delete(ctx, endpoint)
	if err != nil {
		return err
	}
	return expect(resp, http.MethodDelete, endpoint, http.StatusOK, http.StatusNoContent)
}
