package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/user-service/internal/core/registration"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateCredentialMethod は認証サービスの資格情報登録 RPC のフルメソッド名です。
const CreateCredentialMethod = "/auth.v1.AuthService/CreateCredential"

const idempotencyMetadataKey = "idempotency-key"

var _ registration.AuthClient = (*GRPCClient)(nil)

// GRPCClient は認証サービスの gRPC API を呼び出す registration.AuthClient の実装です。
// リクエストは google.protobuf.Struct、レスポンスは google.protobuf.Empty としてやり取りします。
type GRPCClient struct {
	conn    grpc.ClientConnInterface
	timeout time.Duration
}

// NewGRPCClient は GRPCClient を生成します。
func NewGRPCClient(conn grpc.ClientConnInterface, timeout time.Duration) *GRPCClient {
	return &GRPCClient{conn: conn, timeout: timeout}
}

// DialGRPC は認証サービスへのクライアント接続を生成します。opts 未指定の場合は平文で接続します。
func DialGRPC(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: dial %s: %w", target, err)
	}
	return conn, nil
}

// NotifyUserCreated は新規ユーザーの資格情報を認証サービスに登録します。
func (c *GRPCClient) NotifyUserCreated(ctx context.Context, cred registration.NewCredential) error {
	req, err := structpb.NewStruct(map[string]any{
		"userId":   cred.UserID,
		"email":    cred.Email,
		"password": cred.Password,
		"provider": strings.ToUpper(string(cred.Provider)),
		"role":     strings.ToUpper(string(cred.Role)),
	})
	if err != nil {
		return fmt.Errorf("auth: encode request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if cred.IdempotencyKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, idempotencyMetadataKey, cred.IdempotencyKey)
	}

	if err := c.conn.Invoke(ctx, CreateCredentialMethod, req, &emptypb.Empty{}); err != nil {
		return translateStatus(err)
	}
	return nil
}

func translateStatus(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.AlreadyExists, codes.PermissionDenied, codes.FailedPrecondition:
		return fmt.Errorf("%w: %w", ErrRejected, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}
