package object

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeObject struct {
	data []byte
	etag string
}

// fakeS3 - бакет в памяти с постраничным ListObjectsV2 и условной записью
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
	version int

	failDelete map[string]error
	failAll    error
	// beforePut вызывается под блокировкой перед проверкой условий записи
	beforePut func(key string)

	listCalls int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:     bucket,
		objects:    map[string]fakeObject{},
		failDelete: map[string]error{},
	}
}

func preconditionFailed() error {
	return &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
}

func (f *fakeS3) checkBucket(name *string) error {
	if f.failAll != nil {
		return f.failAll
	}
	if aws.ToString(name) != f.bucket {
		return &types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	return nil
}

// bump меняет ETag объекта, имитируя параллельную запись
func (f *fakeS3) bump(key string) {
	obj := f.objects[key]
	f.version++
	obj.etag = `"v` + strconv.Itoa(f.version) + `"`
	f.objects[key] = obj
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	key := aws.ToString(in.Key)
	if f.beforePut != nil {
		f.beforePut(key)
	}

	current, exists := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, preconditionFailed()
	}
	if in.IfMatch != nil && (!exists || current.etag != aws.ToString(in.IfMatch)) {
		return nil, preconditionFailed()
	}

	f.objects[key] = fakeObject{data: data}
	f.bump(key)
	return &s3.PutObjectOutput{ETag: aws.String(f.objects[key].etag)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.data)),
		ETag: aws.String(obj.etag),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	key := aws.ToString(in.Key)
	if err, ok := f.failDelete[key]; ok {
		return nil, err
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.checkBucket(in.Bucket); err != nil {
		return nil, err
	}

	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Токен продолжения: последний выданный ключ
	after := aws.ToString(in.ContinuationToken)
	start := sort.SearchStrings(keys, after)
	if after != "" && start < len(keys) && keys[start] == after {
		start++
	}

	maxKeys := int(aws.ToInt32(in.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{
		IsTruncated: aws.Bool(end < len(keys)),
		KeyCount:    aws.Int32(int32(end - start)),
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end-1])
	}
	return out, nil
}

var _ API = (*fakeS3)(nil)
