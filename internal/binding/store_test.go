package binding

import (
	"path/filepath"
	"testing"

	"anonfiles/share-api/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newStore(t *testing.T) *Store {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&model.ChatLink{}, &model.LinkToken{}))

	return NewStore(conn)
}

func TestIssueRef(t *testing.T) {
	s := newStore(t)

	token, err := s.IssueRef()
	require.NoError(t, err)

	assert.Len(t, token.LinkTag, 16)
	assert.Len(t, token.FileTag, 10)
	assert.Len(t, token.UnlinkTag, 16)
	assert.False(t, token.Used)
}

func TestRedeemSingleUse(t *testing.T) {
	s := newStore(t)

	token, err := s.IssueRef()
	require.NoError(t, err)

	redeemed, err := s.Redeem(100, token.LinkTag)
	require.NoError(t, err)
	assert.Equal(t, token.FileTag, redeemed.FileTag)

	link, err := s.ByFileTag(token.FileTag)
	require.NoError(t, err)
	assert.EqualValues(t, 100, link.ChatID)
	assert.Equal(t, token.UnlinkTag, link.UnlinkTag)

	// A token redeems exactly once, even for the same chat
	_, err = s.Redeem(100, token.LinkTag)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = s.Redeem(200, token.LinkTag)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRedeemUnknownTag(t *testing.T) {
	s := newStore(t)

	_, err := s.Redeem(100, "nope")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestRemoveLinkByEitherTag(t *testing.T) {
	s := newStore(t)

	first, err := s.IssueRef()
	require.NoError(t, err)
	_, err = s.Redeem(100, first.LinkTag)
	require.NoError(t, err)

	second, err := s.IssueRef()
	require.NoError(t, err)
	_, err = s.Redeem(100, second.LinkTag)
	require.NoError(t, err)

	removed, err := s.RemoveLink(100, first.UnlinkTag)
	require.NoError(t, err)
	assert.Equal(t, first.FileTag, removed.FileTag)

	removed, err = s.RemoveLink(100, second.FileTag)
	require.NoError(t, err)
	assert.Equal(t, second.FileTag, removed.FileTag)

	links, err := s.Links(100)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestRemoveLinkWrongChat(t *testing.T) {
	s := newStore(t)

	token, err := s.IssueRef()
	require.NoError(t, err)
	_, err = s.Redeem(100, token.LinkTag)
	require.NoError(t, err)

	_, err = s.RemoveLink(999, token.UnlinkTag)
	assert.ErrorIs(t, err, ErrLinkNotFound)
}

func TestLinks(t *testing.T) {
	s := newStore(t)

	for range 3 {
		token, err := s.IssueRef()
		require.NoError(t, err)
		_, err = s.Redeem(100, token.LinkTag)
		require.NoError(t, err)
	}

	other, err := s.IssueRef()
	require.NoError(t, err)
	_, err = s.Redeem(200, other.LinkTag)
	require.NoError(t, err)

	links, err := s.Links(100)
	require.NoError(t, err)
	assert.Len(t, links, 3)
}

func TestUnlinkTagFor(t *testing.T) {
	s := newStore(t)

	token, err := s.IssueRef()
	require.NoError(t, err)
	_, err = s.Redeem(100, token.LinkTag)
	require.NoError(t, err)

	tag, ok := s.UnlinkTagFor(token.FileTag, 100)
	assert.True(t, ok)
	assert.Equal(t, token.UnlinkTag, tag)

	_, ok = s.UnlinkTagFor(token.FileTag, 999)
	assert.False(t, ok)

	_, ok = s.UnlinkTagFor("unknown", 100)
	assert.False(t, ok)
}
