// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/holomush/authkit/internal/auth"
	"github.com/holomush/authkit/pkg/errutil"
)

func TestUserDoc_RoundTrip(t *testing.T) {
	createdAt := time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC)
	user := &auth.User{ID: "01JUSER", Email: "a@b.com", PasswordHash: "hash", CreatedAt: createdAt}

	raw, err := bson.Marshal(toDoc(user, createdAt))
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "01JUSER", fields["_id"])
	assert.Equal(t, "a@b.com", fields["email"])
	assert.Equal(t, "hash", fields["password_hash"])

	var doc userDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Equal(t, user, doc.user())
}

func TestConnect_InvalidURI(t *testing.T) {
	client, db, err := Connect(context.Background(), Config{URI: "not-a-uri", Database: "authkit"})
	assert.Nil(t, client)
	assert.Nil(t, db)
	errutil.AssertErrorCode(t, err, "MONGO_CONNECT_FAILED")
}
