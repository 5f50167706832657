package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"github.com/wneessen/go-mail"
	"golang.org/x/crypto/ssh"
)

// ErrDelivery is returned when a delivery backend fails after its own cleanup.
var ErrDelivery = errors.New("delivery failed")

// LocalConfig configures the local filesystem backend.
type LocalConfig struct {
	Dir string
}

// EmailConfig configures the SMTP backend.
type EmailConfig struct {
	Host   string
	Port   int
	Sender string
	To     string
	NoTLS  bool
}

// SFTPConfig configures the SFTP backend.
type SFTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	RemoteDir string
}

// Router dispatches a packaged submission to one delivery backend.
type Router struct {
	local LocalConfig
	email EmailConfig
	sftp  SFTPConfig

	log *slog.Logger
}

// NewRouter returns a new delivery Router.
func NewRouter(l *slog.Logger, local LocalConfig, email EmailConfig, sftpCfg SFTPConfig) *Router {
	return &Router{local: local, email: email, sftp: sftpCfg, log: l}
}

// Deliver hands the archive to the backend selected by route and returns a
// location descriptor for the delivered package.
func (r *Router) Deliver(ctx context.Context, route Route, tenant, packageID string, archive []byte) (location string, err error) {
	switch route {
	case RouteLocal:
		location, err = r.deliverLocal(tenant, packageID, archive)
	case RouteEmail:
		location, err = r.deliverEmail(ctx, packageID, archive)
	case RouteSftp:
		location, err = r.deliverSFTP(tenant, packageID, archive)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	if err != nil {
		return "", errors.Join(ErrDelivery, err)
	}
	r.log.Info("Delivered submission package", "route", route.String(), "package", packageID, "location", location)
	return location, nil
}

func (r *Router) deliverLocal(tenant, packageID string, archive []byte) (string, error) {
	dir := filepath.Join(r.local.Dir, tenant)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("could not create submission directory: %v", err)
	}

	target := filepath.Join(dir, archiveName(packageID))
	if err := os.WriteFile(target, archive, 0640); err != nil {
		return "", fmt.Errorf("could not write submission archive: %v", err)
	}
	return "local:" + target, nil
}

func (r *Router) deliverEmail(ctx context.Context, packageID string, archive []byte) (string, error) {
	msg := mail.NewMsg()
	if err := msg.From(r.email.Sender); err != nil {
		return "", fmt.Errorf("invalid sender address: %v", err)
	}
	if err := msg.To(r.email.To); err != nil {
		return "", fmt.Errorf("invalid recipient address: %v", err)
	}
	msg.Subject(fmt.Sprintf("Submission Pack %s", packageID))
	msg.SetBodyString(mail.TypeTextPlain, "Submission pack attached.")
	if err := msg.AttachReader("submission.zip", bytes.NewReader(archive), mail.WithFileContentType("application/zip")); err != nil {
		return "", fmt.Errorf("could not attach archive: %v", err)
	}

	tlsPolicy := mail.TLSOpportunistic
	if r.email.NoTLS {
		// Dev relays (MailHog style) speak plain SMTP.
		tlsPolicy = mail.NoTLS
	}
	client, err := mail.NewClient(r.email.Host, mail.WithPort(r.email.Port), mail.WithTLSPolicy(tlsPolicy))
	if err != nil {
		return "", fmt.Errorf("could not create mail client: %v", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("could not send mail: %v", err)
	}
	return "email:sent:" + r.email.To, nil
}

// deliverSFTP uploads the archive over SFTP, creating missing remote
// directories first. Connection and session are released on every exit path.
func (r *Router) deliverSFTP(tenant, packageID string, archive []byte) (string, error) {
	addr := net.JoinHostPort(r.sftp.Host, strconv.Itoa(r.sftp.Port))
	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            r.sftp.User,
		Auth:            []ssh.AuthMethod{ssh.Password(r.sftp.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // #nosec:G106 Inbound endpoints are tenant-provisioned drop boxes.
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return "", fmt.Errorf("could not connect to %s: %v", addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("could not open sftp session: %v", err)
	}
	defer client.Close()

	remotePath := path.Join(r.sftp.RemoteDir, tenant, archiveName(packageID))
	// MkdirAll treats already existing directories as a no-op.
	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return "", fmt.Errorf("could not create remote directory: %v", err)
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("could not create remote file: %v", err)
	}
	if _, err := f.Write(archive); err != nil {
		f.Close()
		return "", fmt.Errorf("could not write remote file: %v", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("could not close remote file: %v", err)
	}

	return "sftp://" + r.sftp.Host + remotePath, nil
}

func archiveName(packageID string) string {
	return "submission_" + packageID + ".zip"
}
