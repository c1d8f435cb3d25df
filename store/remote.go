// Copyright 2026 The Rep Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

// idEncoding mirrors the base64 URL-safe, unpadded encoding the original
// bundle-gateway API expects ids in.
var idEncoding = base64.RawURLEncoding

// Signer produces the signed bundle header for a payload and reports the
// byte range of that header's signature: the header is prepended to the
// payload before posting, and the id is derived from hashing the signature
// range of the resulting encoded item.
type Signer interface {
	// Header returns the bundle header to prepend to data.
	Header(data []byte) []byte
	// SignatureRange reports the [start, end) byte range, within an
	// encoded item (header+data), that the id hash is computed over.
	SignatureRange() (start, end int)
}

// Digester computes the fixed-width id for an encoded bundle item.
// RemoteStore treats the underlying cryptographic primitive as an opaque
// 32-byte oracle; it only needs something implementing this shape.
type Digester func(encodedSignatureRange []byte) []byte

// RemoteStore is the remote signed-bundle-poster backend: a capability
// surface the core can use interchangeably with LocalStore, backed by a
// blob service reachable over HTTP. It never supports Dealloc or Shrink;
// both are accepted as no-ops.
type RemoteStore struct {
	client   *http.Client
	gateway  string
	signer   Signer
	digest   Digester
	idSize   int
	allocSz  int
}

// NewRemoteStore builds a RemoteStore against gateway (a raw-item HTTP
// endpoint, in the shape of an Arweave/Bundlr gateway: POST to alloc,
// GET /raw/<id> to fetch, HEAD /raw/<id> for size).
func NewRemoteStore(gateway string, signer Signer, digest Digester, allocSize int, client *http.Client) *RemoteStore {
	if client == nil {
		client = http.DefaultClient
	}
	start, end := signer.SignatureRange()
	idSize := len(digest(make([]byte, end-start)))
	return &RemoteStore{
		client:  client,
		gateway: gateway,
		signer:  signer,
		digest:  digest,
		idSize:  idSize,
		allocSz: allocSize,
	}
}

func (r *RemoteStore) IDSize() int    { return r.idSize }
func (r *RemoteStore) AllocSize() int { return r.allocSz }

func (r *RemoteStore) rawURL(id []byte) string {
	return fmt.Sprintf("%s/raw/%s", r.gateway, idEncoding.EncodeToString(id))
}

// Alloc posts a signed bundle item containing data and returns the id
// derived from hashing the item's signature range.
func (r *RemoteStore) Alloc(data []byte) ([]byte, error) {
	if len(data) > r.allocSz {
		return nil, errors.Errorf("store: payload of %d bytes exceeds AllocSize %d", len(data), r.allocSz)
	}
	header := r.signer.Header(data)
	encoded := append(append([]byte(nil), header...), data...)
	start, end := r.signer.SignatureRange()
	if end > len(encoded) {
		return nil, errors.New("store: signature range exceeds encoded item")
	}
	id := r.digest(encoded[start:end])

	req, err := http.NewRequest(http.MethodPost, r.gateway+"/tx", bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "building remote alloc request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(ErrStoreFull, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, errors.Wrapf(ErrStoreFull, "remote store rejected item: status %d", resp.StatusCode)
	}
	return id, nil
}

func (r *RemoteStore) Fetch(id []byte) ([]byte, error) {
	resp, err := r.client.Get(r.rawURL(id))
	if err != nil {
		return nil, errors.Wrap(err, "fetching remote id")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, errors.Errorf("remote store fetch failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *RemoteStore) FetchSize(id []byte) (int, error) {
	req, err := http.NewRequest(http.MethodHead, r.rawURL(id), nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "probing remote id size")
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return 0, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return 0, errors.Errorf("remote store size probe failed: status %d", resp.StatusCode)
	}
	return strconv.Atoi(resp.Header.Get("Content-Length"))
}

// Dealloc is a no-op: the remote backend has no dealloc support.
func (r *RemoteStore) Dealloc(id []byte) error { return nil }

// Shrink is a no-op: there is nothing for the core to reclaim remotely.
func (r *RemoteStore) Shrink() error { return nil }

func (r *RemoteStore) Close() error { return nil }
