package utils_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/filtersync/internal/utils"
)

func TestFlushingWriterFlushesBufferedWriters(testInstance *testing.T) {
	var backingBuffer bytes.Buffer
	bufferedWriter := bufio.NewWriterSize(&backingBuffer, 1024)

	flushingWriter := utils.NewFlushingWriter(bufferedWriter)

	writtenCount, writeError := flushingWriter.Write([]byte("rewrite progress line\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, 22, writtenCount)
	require.Equal(testInstance, "rewrite progress line\n", backingBuffer.String())
}

func TestFlushingWriterAvoidsDoubleWrapping(testInstance *testing.T) {
	var backingBuffer bytes.Buffer
	firstWrapper := utils.NewFlushingWriter(&backingBuffer)
	secondWrapper := utils.NewFlushingWriter(firstWrapper)
	require.Same(testInstance, firstWrapper, secondWrapper)
}

func TestFlushingWriterNilWriter(testInstance *testing.T) {
	require.Nil(testInstance, utils.NewFlushingWriter(nil))
}
