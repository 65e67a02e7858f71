//go:build e2e

// Package e2e contains end-to-end integration tests using a real DynamoDB table.
// Run with: go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/quireio/quire/store"
)

// Test configuration
const (
	awsProfile = "quire-alpha-cp"

	// Table name - unique per test run to avoid conflicts
	tablePrefix = "quire-e2e-test"
)

var (
	testID         string
	documentsTable string

	ddbClient *dynamodb.Client
	testStore *store.DocumentStore
)

func TestMain(m *testing.M) {
	// Generate unique test ID
	testID = uuid.New().String()[:8]
	documentsTable = fmt.Sprintf("%s-%s-documents", tablePrefix, testID)

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table: %s\n", documentsTable)

	// Initialize AWS client (uses region from profile config)
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithSharedConfigProfile(awsProfile),
	)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	ddbClient = dynamodb.NewFromConfig(cfg)

	// Create table
	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	// Initialize store
	testStore, err = store.New(ddbClient, store.DefaultConfig(documentsTable))
	if err != nil {
		fmt.Printf("Failed to create store: %v\n", err)
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup table
	if err := deleteTable(ctx); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}

	os.Exit(code)
}

func createTable(ctx context.Context) error {
	fmt.Println("Creating test table...")

	stringAttr := func(name string) types.AttributeDefinition {
		return types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		}
	}

	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(documentsTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("PK"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("SK"), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			stringAttr("PK"), stringAttr("SK"),
			stringAttr("GSI1PK"), stringAttr("GSI1SK"),
			stringAttr("GSI2PK"), stringAttr("GSI2SK"),
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("GSI1"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI1PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI1SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName: aws.String("GSI2"),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("GSI2PK"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("GSI2SK"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", documentsTable, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(documentsTable),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", documentsTable, err)
	}

	fmt.Println("Table created and active")
	return nil
}

func deleteTable(ctx context.Context) error {
	fmt.Println("Deleting test table...")

	_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(documentsTable),
	})
	if err != nil {
		fmt.Printf("Warning: failed to delete table %s: %v\n", documentsTable, err)
	}

	fmt.Println("Table deleted")
	return nil
}

// waitForIndex gives the GSIs a moment to catch up after writes. The indexes
// are eventually consistent.
func waitForIndex() {
	time.Sleep(2 * time.Second)
}

// --- Document Tests ---

func TestSaveAndFindDocument(t *testing.T) {
	ctx := context.Background()

	length := int64(1024)
	doc := &store.Document{
		Path:          "files/report.pdf",
		ContentType:   "application/pdf",
		ContentLength: &length,
		UserID:        "e2e-user",
	}

	if err := testStore.SaveDocument(ctx, "", doc, nil); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}
	if doc.DocumentID == "" {
		t.Fatal("expected generated document id")
	}

	result, err := testStore.FindDocument(ctx, "", doc.DocumentID, false)
	if err != nil {
		t.Fatalf("FindDocument failed: %v", err)
	}
	if result == nil {
		t.Fatal("expected document to exist")
	}
	if result.Path != doc.Path {
		t.Errorf("expected path %q, got %q", doc.Path, result.Path)
	}
	if result.ContentLength == nil || *result.ContentLength != length {
		t.Error("expected content length to round-trip")
	}
}

func TestFindDocument_NotFound(t *testing.T) {
	ctx := context.Background()

	result, err := testStore.FindDocument(ctx, "", uuid.New().String(), false)
	if err != nil {
		t.Fatalf("FindDocument failed: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil for missing document, got %+v", result)
	}
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()

	doc := &store.Document{UserID: "e2e-user"}
	if err := testStore.SaveDocument(ctx, "acme", doc, nil); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	result, err := testStore.FindDocument(ctx, "", doc.DocumentID, false)
	if err != nil {
		t.Fatalf("FindDocument failed: %v", err)
	}
	if result != nil {
		t.Error("default tenant should not see acme's document")
	}
}

// --- Tag Tests ---

func TestUntaggedLifecycle(t *testing.T) {
	ctx := context.Background()

	doc := &store.Document{UserID: "e2e-user"}
	if _, err := testStore.SaveDocumentWithChildren(ctx, "", doc, nil, nil); err != nil {
		t.Fatalf("SaveDocumentWithChildren failed: %v", err)
	}

	tag, err := testStore.FindDocumentTag(ctx, "", doc.DocumentID, store.TagUntagged)
	if err != nil {
		t.Fatalf("FindDocumentTag failed: %v", err)
	}
	if tag == nil {
		t.Fatal("expected untagged tag after tagless save")
	}

	err = testStore.AddTags(ctx, "", doc.DocumentID, []store.DocumentTag{
		{Key: "status", Value: "draft"},
	})
	if err != nil {
		t.Fatalf("AddTags failed: %v", err)
	}

	tag, err = testStore.FindDocumentTag(ctx, "", doc.DocumentID, store.TagUntagged)
	if err != nil {
		t.Fatalf("FindDocumentTag failed: %v", err)
	}
	if tag != nil {
		t.Error("expected untagged tag removed after first user tag")
	}
}

func TestAddTags_RejectsDelimiter(t *testing.T) {
	ctx := context.Background()

	err := testStore.AddTags(ctx, "", uuid.New().String(), []store.DocumentTag{
		{Key: "bad\tkey"},
	})
	if err != store.ErrTagKeyInvalid {
		t.Errorf("expected ErrTagKeyInvalid, got %v", err)
	}
}

// --- Date Search Tests ---

func TestFindDocumentsByDate(t *testing.T) {
	ctx := context.Background()
	siteID := "date-" + testID

	doc := &store.Document{UserID: "e2e-user"}
	if err := testStore.SaveDocument(ctx, siteID, doc, nil); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	waitForIndex()

	page, err := testStore.FindDocumentsByDate(ctx, siteID, time.Now().UTC().Truncate(24*time.Hour), nil, 10)
	if err != nil {
		t.Fatalf("FindDocumentsByDate failed: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].DocumentID != doc.DocumentID {
		t.Errorf("expected the saved document, got %d results", len(page.Results))
	}
}

func TestFindDocumentsByDate_Pagination(t *testing.T) {
	ctx := context.Background()
	siteID := "page-" + testID

	for i := 0; i < 5; i++ {
		doc := &store.Document{UserID: "e2e-user"}
		if err := testStore.SaveDocument(ctx, siteID, doc, nil); err != nil {
			t.Fatalf("SaveDocument %d failed: %v", i, err)
		}
	}

	waitForIndex()

	seen := map[string]bool{}
	var token *store.Token
	for i := 0; ; i++ {
		if i > 10 {
			t.Fatal("pagination did not terminate")
		}
		page, err := testStore.FindDocumentsByDate(ctx, siteID, time.Now().UTC().Truncate(24*time.Hour), token, 2)
		if err != nil {
			t.Fatalf("FindDocumentsByDate failed: %v", err)
		}
		for _, doc := range page.Results {
			if seen[doc.DocumentID] {
				t.Errorf("duplicate document %q across pages", doc.DocumentID)
			}
			seen[doc.DocumentID] = true
		}
		token = page.Token
		if token == nil {
			break
		}
	}

	if len(seen) != 5 {
		t.Errorf("expected 5 documents across pages, got %d", len(seen))
	}
}

// --- Children / Cascade Tests ---

func TestDeleteDocumentCascade(t *testing.T) {
	ctx := context.Background()

	doc := &store.Document{Path: "files/parent.pdf", UserID: "e2e-user"}
	children := []store.ChildDocument{
		{Document: store.Document{UserID: "e2e-user"}},
	}
	tags := []store.DocumentTag{{Key: "status", Value: "draft"}}

	saved, err := testStore.SaveDocumentWithChildren(ctx, "", doc, tags, children)
	if err != nil {
		t.Fatalf("SaveDocumentWithChildren failed: %v", err)
	}
	childID := saved.Children[0].DocumentID

	_, err = testStore.SaveDocumentFormat(ctx, "", store.DocumentFormat{
		DocumentID:  doc.DocumentID,
		ContentType: "text/plain",
		UserID:      "e2e-user",
	})
	if err != nil {
		t.Fatalf("SaveDocumentFormat failed: %v", err)
	}

	if err := testStore.DeleteDocument(ctx, "", doc.DocumentID); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}

	if result, _ := testStore.FindDocument(ctx, "", doc.DocumentID, true); result != nil {
		t.Error("expected document deleted")
	}
	if result, _ := testStore.FindDocument(ctx, "", childID, false); result != nil {
		t.Error("expected child document deleted")
	}
	if tag, _ := testStore.FindDocumentTag(ctx, "", doc.DocumentID, "status"); tag != nil {
		t.Error("expected tag deleted")
	}
	if format, _ := testStore.FindDocumentFormat(ctx, "", doc.DocumentID, "text/plain"); format != nil {
		t.Error("expected format deleted")
	}
}

func TestDeleteDocument_Idempotent(t *testing.T) {
	ctx := context.Background()

	doc := &store.Document{UserID: "e2e-user"}
	if err := testStore.SaveDocument(ctx, "", doc, nil); err != nil {
		t.Fatalf("SaveDocument failed: %v", err)
	}

	// Delete twice - should not error
	if err := testStore.DeleteDocument(ctx, "", doc.DocumentID); err != nil {
		t.Fatalf("First delete failed: %v", err)
	}
	if err := testStore.DeleteDocument(ctx, "", doc.DocumentID); err != nil {
		t.Errorf("Second delete should be idempotent, got: %v", err)
	}
}

// --- Preset Tests ---

func TestPresetLifecycle(t *testing.T) {
	ctx := context.Background()
	presetType := "export-" + testID

	preset := &store.Preset{Type: presetType, Name: "weekly-report", UserID: "e2e-user"}
	tags := []store.PresetTag{{Key: "format"}}

	if _, err := testStore.SavePreset(ctx, "", preset, tags); err != nil {
		t.Fatalf("SavePreset failed: %v", err)
	}
	if preset.ID == "" {
		t.Fatal("expected generated preset id")
	}

	result, err := testStore.FindPreset(ctx, "", preset.ID)
	if err != nil {
		t.Fatalf("FindPreset failed: %v", err)
	}
	if result == nil || result.Name != "weekly-report" {
		t.Fatalf("expected saved preset, got %+v", result)
	}

	waitForIndex()

	page, err := testStore.FindPresets(ctx, "", presetType, "", nil, 10)
	if err != nil {
		t.Fatalf("FindPresets failed: %v", err)
	}
	if len(page.Results) != 1 {
		t.Errorf("expected 1 preset by type, got %d", len(page.Results))
	}

	if err := testStore.DeletePreset(ctx, "", preset.ID); err != nil {
		t.Fatalf("DeletePreset failed: %v", err)
	}
	if tag, _ := testStore.FindPresetTag(ctx, "", preset.ID, "format"); tag != nil {
		t.Error("expected preset tag deleted with preset")
	}
}
