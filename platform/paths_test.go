package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_SanitizeTopicName_ReplacesPathHostileChars(t *testing.T) {
	require.Equal(t, "a_b_c", SanitizeTopicName("a/b:c"))
	require.Equal(t, "plain", SanitizeTopicName("plain"))
}

func Test_TopicFilePath_IsUnderTopicsDir(t *testing.T) {
	path := TopicFilePath("my/topic")
	require.Equal(t, TopicsDir()+"/horus_my_topic", path)
}

func Test_MetadataFilePath_HasMetaSuffix(t *testing.T) {
	path := MetadataFilePath("my_topic")
	require.Equal(t, PubsubMetadataDir()+"/my_topic.meta", path)
}

func Test_SessionTopicsDir_ScopedUnderSessionID(t *testing.T) {
	path := SessionTopicsDir("session-123")
	require.Equal(t, BaseDir()+"/sessions/session-123/topics", path)
}

func Test_EnsureDirs_CreatesExpectedDirectories(t *testing.T) {
	require.NoError(t, EnsureDirs())
}

func Test_HORUS_ROOT_OverridesBaseDirAndLogRingPath(t *testing.T) {
	t.Setenv("HORUS_ROOT", "/tmp/horus_test_override")

	require.Equal(t, "/tmp/horus_test_override", BaseDir())
	require.Equal(t, "/tmp/horus_test_override_logs", LogRingPath())
	require.Equal(t, "/tmp/horus_test_override/topics", TopicsDir())
}
