package backend

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"media-sync/internal/logging"
	"media-sync/internal/mediatypes"
	"media-sync/internal/model"
)

// S3Client serves an account backed by an S3-compatible bucket. Folder
// structure is emulated from key prefixes with "/" as delimiter. The
// connection is created lazily on first use and cached for the client's
// lifetime. Plain object stores have no server-side thumbnails, so the
// capability set is empty.
type S3Client struct {
	account model.Account

	mu     sync.Mutex
	client *s3.Client
}

// NewS3Client creates a client for an S3 account.
func NewS3Client(account model.Account) *S3Client {
	return &S3Client{account: account}
}

// Capabilities reports that no server-side artifacts exist.
func (c *S3Client) Capabilities() model.Capabilities {
	return model.Capabilities{}
}

// conn returns the cached S3 client, creating it on first use.
func (c *S3Client) conn(ctx context.Context) (*s3.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if c.account.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.account.Region))
	}
	if c.account.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.account.AccessKey, c.account.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	c.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.account.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.account.Endpoint)
			o.UsePathStyle = true
		}
	})

	logging.Debug("s3: connected account %s (bucket %s)", c.account.ID, c.account.Bucket)
	return c.client, nil
}

// keyPrefix maps a root-relative folder path to the bucket key prefix,
// always ending in "/" (or empty for the bucket root without prefix).
func (c *S3Client) keyPrefix(folderPath string) string {
	folderPath = model.CleanFolderPath(folderPath)
	prefix := strings.TrimPrefix(c.account.Prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if folderPath == "/" {
		return prefix
	}
	return prefix + strings.TrimPrefix(folderPath, "/") + "/"
}

// Validate checks that the bucket is reachable.
func (c *S3Client) Validate(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { observe("s3", "validate", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return err
	}
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.account.Bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", c.account.Bucket, err)
	}
	return nil
}

// GetFolder refreshes a folder; DateUpdated is the max LastModified of
// every object under the folder's prefix.
func (c *S3Client) GetFolder(ctx context.Context, folder *model.Folder) (*model.Folder, error) {
	return c.GetFolderByPath(ctx, folder.Path)
}

// GetFolderByPath resolves a root-relative folder path.
func (c *S3Client) GetFolderByPath(ctx context.Context, folderPath string) (*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("s3", "get_folder", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	folderPath = model.CleanFolderPath(folderPath)
	var updated time.Time

	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.account.Bucket),
		Prefix: aws.String(c.keyPrefix(folderPath)),
	})
	for paginator.HasMorePages() {
		page, pageErr := paginator.NextPage(ctx)
		if pageErr != nil {
			err = fmt.Errorf("list objects under %s: %w", folderPath, pageErr)
			return nil, err
		}
		for _, object := range page.Contents {
			if object.LastModified != nil && object.LastModified.After(updated) {
				updated = *object.LastModified
			}
		}
	}

	return &model.Folder{
		ID:          model.FolderID(c.account.ID, folderPath),
		AccountID:   c.account.ID,
		Path:        folderPath,
		DateUpdated: updated,
	}, nil
}

// ListFolders returns the immediate subfolders, derived from the common
// prefixes one delimiter level down.
func (c *S3Client) ListFolders(ctx context.Context, folder *model.Folder) ([]*model.Folder, error) {
	start := time.Now()
	var err error
	defer func() { observe("s3", "list_folders", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	var folders []*model.Folder
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.account.Bucket),
		Prefix:    aws.String(c.keyPrefix(folder.Path)),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, pageErr := paginator.NextPage(ctx)
		if pageErr != nil {
			err = fmt.Errorf("list folders under %s: %w", folder.Path, pageErr)
			return nil, err
		}
		for _, common := range page.CommonPrefixes {
			if common.Prefix == nil {
				continue
			}
			name := path.Base(strings.TrimSuffix(*common.Prefix, "/"))
			childPath := model.ChildPath(folder.Path, name)
			folders = append(folders, &model.Folder{
				ID:        model.FolderID(c.account.ID, childPath),
				CloudID:   *common.Prefix,
				AccountID: c.account.ID,
				Path:      childPath,
			})
		}
	}
	return folders, nil
}

// ListFiles returns the media objects directly under the folder's
// prefix. The hash is the object's ETag.
func (c *S3Client) ListFiles(ctx context.Context, folder *model.Folder) ([]*model.File, error) {
	start := time.Now()
	var err error
	defer func() { observe("s3", "list_files", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	prefix := c.keyPrefix(folder.Path)
	var files []*model.File
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.account.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, pageErr := paginator.NextPage(ctx)
		if pageErr != nil {
			err = fmt.Errorf("list files under %s: %w", folder.Path, pageErr)
			return nil, err
		}
		for _, object := range page.Contents {
			if object.Key == nil || *object.Key == prefix {
				continue
			}
			name := path.Base(*object.Key)
			if !mediatypes.IsMediaFile(name) {
				continue
			}

			file := &model.File{
				ID:        model.FileID(c.account.ID, folder.ID, name),
				CloudID:   *object.Key,
				AccountID: c.account.ID,
				FolderID:  folder.ID,
				Name:      name,
			}
			if object.ETag != nil {
				file.Hash = strings.Trim(*object.ETag, `"`)
			}
			if object.Size != nil {
				file.Size = *object.Size
			}
			if object.LastModified != nil {
				file.DateUpdated = *object.LastModified
			}
			files = append(files, file)
		}
	}
	return files, nil
}

// DownloadFile fetches the object into destDir/destName using the
// concurrent download manager.
func (c *S3Client) DownloadFile(ctx context.Context, file *model.File, destDir, destName string) error {
	start := time.Now()
	var err error
	defer func() { observe("s3", "download_file", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return err
	}

	dest, err := os.Create(filepath.Join(destDir, destName))
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer dest.Close()

	downloader := manager.NewDownloader(client)
	if _, err = downloader.Download(ctx, dest, &s3.GetObjectInput{
		Bucket: aws.String(c.account.Bucket),
		Key:    aws.String(file.CloudID),
	}); err != nil {
		return fmt.Errorf("download %s: %w", file.CloudID, err)
	}
	return nil
}

// DownloadThumbnail is not supported by plain object storage.
func (c *S3Client) DownloadThumbnail(ctx context.Context, file *model.File, destDir, destName string) error {
	return ErrNotSupported
}

// DownloadPreview is not supported by plain object storage.
func (c *S3Client) DownloadPreview(ctx context.Context, file *model.File, destDir, destName string) error {
	return ErrNotSupported
}

// MoveFile relocates an object via copy-then-delete.
func (c *S3Client) MoveFile(ctx context.Context, file *model.File, destFolder *model.Folder) error {
	start := time.Now()
	var err error
	defer func() { observe("s3", "move_file", start, err) }()

	err = c.copyThenDelete(ctx, file, c.keyPrefix(destFolder.Path)+file.Name)
	return err
}

// RenameFile renames an object via copy-then-delete.
func (c *S3Client) RenameFile(ctx context.Context, file *model.File, newName string) error {
	start := time.Now()
	var err error
	defer func() { observe("s3", "rename_file", start, err) }()

	dir := path.Dir(file.CloudID)
	newKey := newName
	if dir != "." && dir != "/" {
		newKey = dir + "/" + newName
	}
	err = c.copyThenDelete(ctx, file, newKey)
	return err
}

func (c *S3Client) copyThenDelete(ctx context.Context, file *model.File, newKey string) error {
	client, err := c.conn(ctx)
	if err != nil {
		return err
	}

	if _, err := client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.account.Bucket),
		CopySource: aws.String(c.account.Bucket + "/" + file.CloudID),
		Key:        aws.String(newKey),
	}); err != nil {
		return fmt.Errorf("copy %s to %s: %w", file.CloudID, newKey, err)
	}

	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.account.Bucket),
		Key:    aws.String(file.CloudID),
	}); err != nil {
		return fmt.Errorf("delete %s after copy: %w", file.CloudID, err)
	}
	return nil
}

// DeleteFile removes an object from the bucket.
func (c *S3Client) DeleteFile(ctx context.Context, file *model.File) error {
	start := time.Now()
	var err error
	defer func() { observe("s3", "delete_file", start, err) }()

	client, err := c.conn(ctx)
	if err != nil {
		return err
	}

	if _, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.account.Bucket),
		Key:    aws.String(file.CloudID),
	}); err != nil {
		return fmt.Errorf("delete %s: %w", file.CloudID, err)
	}
	return nil
}
