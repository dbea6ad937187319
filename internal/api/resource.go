package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/uma-arai/sbcntr-hostel/internal/model"
)

// Resource は REST のリソースコレクションです
// 一覧・取得・作成・更新・削除の標準操作を提供します
type Resource[T any] struct {
	c    *Client
	path string
}

func newResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{c: c, path: path}
}

func (r *Resource[T]) item(id string) string {
	return r.path + "/" + url.PathEscape(id)
}

// List は条件に一致する要素を返します
func (r *Resource[T]) List(ctx context.Context, filter model.ListFilter) ([]T, error) {
	query := make(map[string]string, len(filter))
	for k, v := range filter {
		if v != "" {
			query[k] = v
		}
	}
	items := make([]T, 0)
	if err := r.c.do(ctx, call{method: http.MethodGet, path: r.path, query: query, result: &items}); err != nil {
		return nil, err
	}
	return items, nil
}

// Get は ID を指定して要素を取得します
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	var item T
	if err := r.c.do(ctx, call{method: http.MethodGet, path: r.item(id), result: &item}); err != nil {
		return nil, err
	}
	return &item, nil
}

// Create は要素を作成し、バックエンドが返した内容を返します
func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	var item T
	if err := r.c.do(ctx, call{method: http.MethodPost, path: r.path, body: body, result: &item}); err != nil {
		return nil, err
	}
	return &item, nil
}

// Update は要素を部分更新します
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (*T, error) {
	var item T
	if err := r.c.do(ctx, call{method: http.MethodPatch, path: r.item(id), body: body, result: &item}); err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete は要素を削除します
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.c.do(ctx, call{method: http.MethodDelete, path: r.item(id)})
}

// Action は approve / reject などの動詞エンドポイントを呼び出します
func (r *Resource[T]) Action(ctx context.Context, id, verb string, body any) (*T, error) {
	var item T
	if err := r.c.do(ctx, call{method: http.MethodPost, path: r.item(id) + "/" + verb, body: body, result: &item}); err != nil {
		return nil, err
	}
	return &item, nil
}
