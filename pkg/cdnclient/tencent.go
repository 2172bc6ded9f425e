package cdnclient

import (
	"context"
	"fmt"

	cdn "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/cdn/v20180606"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
)

// TencentCDN purges paths through the Tencent Cloud CDN API.
type TencentCDN struct {
	client *cdn.Client
}

func NewTencentCDN(secretID, secretKey, region string) (*TencentCDN, error) {
	credential := common.NewCredential(secretID, secretKey)
	client, err := cdn.NewClient(credential, region, profile.NewClientProfile())
	if err != nil {
		return nil, fmt.Errorf("create CDN client: %w", err)
	}
	return &TencentCDN{client: client}, nil
}

// PurgePath issues exactly one directory purge for url.
func (t *TencentCDN) PurgePath(ctx context.Context, url string) error {
	req := cdn.NewPurgePathCacheRequest()
	req.Paths = common.StringPtrs([]string{url})
	req.FlushType = common.StringPtr("flush")

	if _, err := t.client.PurgePathCacheWithContext(ctx, req); err != nil {
		return fmt.Errorf("purge path cache: %w", err)
	}
	return nil
}
